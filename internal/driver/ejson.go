package driver

import "go.mongodb.org/mongo-driver/bson"

// ToRelaxedExtJSON renders v (a bson.D, bson.M, or driver result) as
// relaxed extended JSON: `{"$oid": "..."}`-style type wrappers for types
// JSON can't represent natively, but plain numbers/strings where JSON
// already has an unambiguous representation. This is the form the tool
// layer returns to the agent.
func ToRelaxedExtJSON(v any) (string, error) {
	b, err := bson.MarshalExtJSON(v, false, false)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCanonicalExtJSON renders v as canonical extended JSON, wrapping every
// BSON type including plain numbers, used when byte-for-byte type
// fidelity matters (e.g. exported documents round-tripped back into
// MongoDB).
func ToCanonicalExtJSON(v any) (string, error) {
	b, err := bson.MarshalExtJSON(v, true, false)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromExtJSON parses either relaxed or canonical extended JSON into a
// bson.D, used to decode filter/update/pipeline arguments supplied by the
// agent as JSON text.
func FromExtJSON(data []byte) (bson.D, error) {
	var out bson.D
	if err := bson.UnmarshalExtJSON(data, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ArrayFromExtJSON parses an extended-JSON array into a bson.A, used for
// aggregation pipelines.
func ArrayFromExtJSON(data []byte) (bson.A, error) {
	var out bson.A
	if err := bson.UnmarshalExtJSON(data, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}
