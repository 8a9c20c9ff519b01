package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genErrorCode() gopter.Gen {
	return gen.OneConstOf(
		CodeInvalidArgument,
		CodeNotFound,
		CodeUnauthenticated,
		CodePermissionDenied,
		CodeAlreadyExists,
		CodeInternal,
	)
}

func genNonEmptyString() gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 })
}

// Every error response body carries code, message and request_id.
func TestPropertyStructuredErrorResponseFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genRequestID := gen.RegexMatch("[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}")

	properties.Property("error response contains required fields", prop.ForAll(
		func(code, message, requestID string) bool {
			rr := httptest.NewRecorder()
			WriteErrorWithRequestID(rr, New(code, message), requestID)

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Logf("decode: %v", err)
				return false
			}
			return response["code"] == code &&
				response["message"] == message &&
				response["request_id"] == requestID &&
				rr.Header().Get("Content-Type") == "application/json"
		},
		genErrorCode(),
		genNonEmptyString(),
		genRequestID,
	))

	properties.Property("HTTP status code matches error code", prop.ForAll(
		func(code string) bool {
			err := New(code, "test message")
			rr := httptest.NewRecorder()
			WriteError(rr, err)
			return rr.Code == err.HTTPStatusCode()
		},
		genErrorCode(),
	))

	properties.TestingRun(t)
}

func TestHTTPStatusCodes(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodePermissionDenied, http.StatusForbidden},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeInternal, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code, "m").HTTPStatusCode(); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.code, got, tt.want)
		}
	}
}

// Validation errors list every field-level failure under details.fields.
func TestPropertyValidationErrorFieldDetails(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genValidationError := gopter.CombineGens(
		gen.RegexMatch("[a-z][a-zA-Z0-9_]{0,20}"),
		genNonEmptyString(),
	).Map(func(values []interface{}) ValidationError {
		return ValidationError{Field: values[0].(string), Message: values[1].(string)}
	})

	properties.Property("validation error contains field-level details", prop.ForAll(
		func(validationErrors []ValidationError) bool {
			if len(validationErrors) == 0 {
				return true
			}
			var errs ValidationErrors
			for _, ve := range validationErrors {
				errs.Add(ve.Field, ve.Message)
			}

			rr := httptest.NewRecorder()
			WriteError(rr, errs.ToAPIError())
			if rr.Code != http.StatusBadRequest {
				return false
			}

			var response struct {
				Code    string `json:"code"`
				Details struct {
					Fields []ValidationError `json:"fields"`
				} `json:"details"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Logf("decode: %v", err)
				return false
			}
			if response.Code != CodeInvalidArgument || len(response.Details.Fields) != len(validationErrors) {
				return false
			}
			for i, f := range response.Details.Fields {
				if f != validationErrors[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, genValidationError),
	))

	properties.TestingRun(t)
}

func TestErrorLogEntryCarriesStack(t *testing.T) {
	entry := NewErrorLogEntry(NewInternal("boom"), "req-1")
	if entry.RequestID != "req-1" || entry.ErrorCode != CodeInternal || entry.Message != "boom" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.StackTrace == "" {
		t.Error("expected a stack trace")
	}
	if attrs := entry.ToSlogAttrs(); len(attrs) != 8 {
		t.Errorf("expected 4 key/value pairs, got %d items", len(attrs))
	}
}
