package message

import "github.com/google/uuid"

// Registry maps every closed-set Kind to a stable 128-bit identifier, used
// to type-check slot connections at graph construction time (spec §6).
// This is a statically known table, not a mutable global: there is no way
// to register a new kind at runtime, matching Design Notes' guidance to
// replace the original's process-global identifier map with a table built
// once at program start.
var Registry = map[Kind]uuid.UUID{
	KindAudio:             uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e01"),
	KindFeatures:          uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e02"),
	KindConversationState: uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e03"),
	KindMatrix:            uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e04"),
	KindNbest:             uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e05"),
	KindTimeMap:           uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e06"),
	KindBinary:            uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e07"),
	KindJSON:              uuid.MustParse("9a7e9e0e-3b8e-4e9a-9b0e-1a2b3c4d5e08"),
}

// UUIDForKind returns the stable identifier for k. It panics if k is not a
// member of the closed set, which would itself be a programming error
// caught at construction time, not a runtime contract violation.
func UUIDForKind(k Kind) uuid.UUID {
	id, ok := Registry[k]
	if !ok {
		panic("message: unknown kind " + k.String())
	}
	return id
}

// KindForUUID reverse-looks-up a Kind from its identifier, returning false
// if no registered kind matches. Used by slot wiring to validate that a
// producer and consumer agree on message type.
func KindForUUID(id uuid.UUID) (Kind, bool) {
	for k, v := range Registry {
		if v == id {
			return k, true
		}
	}
	return 0, false
}
