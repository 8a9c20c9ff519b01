package models

import "strings"

// ActorKind tags which actor representation a record carries.
type ActorKind int

const (
	// ActorNone means the record has no actor.
	ActorNone ActorKind = iota
	// ActorStructured is the performedBy object.
	ActorStructured
	// ActorLegacy is the older flat user/userId pair.
	ActorLegacy
)

// String returns the kind name.
func (k ActorKind) String() string {
	switch k {
	case ActorStructured:
		return "structured"
	case ActorLegacy:
		return "legacy"
	}
	return "none"
}

// Performer is the structured actor shape.
type Performer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// LegacyUser is the flat actor shape written by older clients.
type LegacyUser struct {
	User   string `json:"user,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// Actor is a tagged union over {none, structured, legacy}. The zero value is ActorNone.
type Actor struct {
	kind      ActorKind
	performer Performer
	legacy    LegacyUser
}

// NoActor returns the empty actor.
func NoActor() Actor { return Actor{} }

// StructuredActor wraps a performer.
func StructuredActor(p Performer) Actor {
	return Actor{kind: ActorStructured, performer: p}
}

// LegacyActor wraps the flat user/userId pair.
func LegacyActor(user, userID string) Actor {
	if user == "" && userID == "" {
		return NoActor()
	}
	return Actor{kind: ActorLegacy, legacy: LegacyUser{User: user, UserID: userID}}
}

// SystemActor is the identity used by scheduled maintenance.
func SystemActor() Actor {
	return StructuredActor(Performer{ID: "system", Name: "System", Role: "system"})
}

// Kind returns the variant tag.
func (a Actor) Kind() ActorKind { return a.kind }

// Performer returns the structured performer, if that is the variant.
func (a Actor) Performer() (Performer, bool) {
	return a.performer, a.kind == ActorStructured
}

// Legacy returns the legacy pair, if that is the variant.
func (a Actor) Legacy() (LegacyUser, bool) {
	return a.legacy, a.kind == ActorLegacy
}

// Key is the identity used for equality filtering and option lists.
func (a Actor) Key() string {
	switch a.kind {
	case ActorStructured:
		if a.performer.ID != "" {
			return a.performer.ID
		}
		return a.performer.Email
	case ActorLegacy:
		if a.legacy.UserID != "" {
			return a.legacy.UserID
		}
		return a.legacy.User
	case ActorNone:
	}
	return ""
}

// Label is the human-readable actor name shown in tables and exports.
func (a Actor) Label() string {
	switch a.kind {
	case ActorStructured:
		switch {
		case a.performer.Name != "":
			return a.performer.Name
		case a.performer.Email != "":
			return a.performer.Email
		}
		return a.performer.ID
	case ActorLegacy:
		if a.legacy.User != "" {
			return a.legacy.User
		}
		return a.legacy.UserID
	case ActorNone:
	}
	return ""
}

// SearchText returns the lower-cased name and email fields searched by free text.
func (a Actor) SearchText() []string {
	switch a.kind {
	case ActorStructured:
		return []string{strings.ToLower(a.performer.Name), strings.ToLower(a.performer.Email)}
	case ActorLegacy:
		return []string{strings.ToLower(a.legacy.User)}
	case ActorNone:
	}
	return nil
}

// Matches reports whether key identifies this actor.
func (a Actor) Matches(key string) bool {
	if key == "" {
		return false
	}
	switch a.kind {
	case ActorStructured:
		return key == a.performer.ID || key == a.performer.Email
	case ActorLegacy:
		return key == a.legacy.UserID || key == a.legacy.User
	case ActorNone:
	}
	return false
}
