package bolt

import (
	"errors"
	"fmt"
	"time"

	"vanillastore/internal/store"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var errCorruptDoc = errors.New("corrupt document")

// encodeDoc clones value into a structpb document. The value goes through
// its JSON form first: structpb.NewValue has no cycle detection, and Go
// structs have no direct structpb mapping.
func encodeDoc(key string, value any, now time.Time) ([]byte, error) {
	data, err := cloneValue(value)
	if err != nil {
		return nil, err
	}
	doc := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(key),
		"data":      data,
		"timestamp": structpb.NewNumberValue(float64(now.UnixMilli())),
	}}
	raw, err := proto.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrSerialization, err)
	}
	return raw, nil
}

func cloneValue(value any) (*structpb.Value, error) {
	norm, err := store.Normalize(value)
	if err != nil {
		return nil, err
	}
	v, err := structpb.NewValue(norm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrSerialization, err)
	}
	return v, nil
}

func decodeDoc(raw []byte) (id string, data any, err error) {
	var doc structpb.Struct
	if err := proto.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errCorruptDoc, err)
	}
	fields := doc.GetFields()
	d, ok := fields["data"]
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data", errCorruptDoc)
	}
	return fields["id"].GetStringValue(), d.AsInterface(), nil
}
