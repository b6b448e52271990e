package models

import (
	"fmt"
	"strconv"
)

type UserKeyKind int

const (
	LegacyKey UserKeyKind = iota + 1
	NativeKey
)

// UserKey is the only way code outside the identity resolver refers to a user.
// A legacy key either holds a parsed numeric id or, for the fallback case, the raw candidate text.
type UserKey struct {
	kind      UserKeyKind
	legacyID  int
	candidate string
	nativeID  string
}

func LegacyUserKey(id int) UserKey {
	return UserKey{kind: LegacyKey, legacyID: id, candidate: strconv.Itoa(id)}
}

func LegacyCandidateKey(raw string) UserKey {
	if id, err := strconv.Atoi(raw); err == nil {
		return LegacyUserKey(id)
	}
	return UserKey{kind: LegacyKey, candidate: raw}
}

func NativeUserKey(id string) UserKey {
	return UserKey{kind: NativeKey, nativeID: id}
}

func (k UserKey) Kind() UserKeyKind {
	return k.kind
}

func (k UserKey) IsZero() bool {
	return k.kind == 0
}

// Legacy returns the numeric legacy id; ok is false for native keys and for unparsable candidates.
func (k UserKey) Legacy() (id int, ok bool) {
	if k.kind != LegacyKey || strconv.Itoa(k.legacyID) != k.candidate {
		return 0, false
	}
	return k.legacyID, true
}

func (k UserKey) LegacyCandidate() string {
	return k.candidate
}

func (k UserKey) Native() (string, bool) {
	return k.nativeID, k.kind == NativeKey
}

func (k UserKey) String() string {
	switch k.kind {
	case LegacyKey:
		return fmt.Sprintf("legacy:%s", k.candidate)
	case NativeKey:
		return fmt.Sprintf("native:%s", k.nativeID)
	default:
		return "unresolved"
	}
}
