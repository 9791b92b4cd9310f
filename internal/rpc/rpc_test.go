package rpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/odm/internal/store"
)

func TestFullMethod(t *testing.T) {
	assert.Equal(t, "/odm.v1.DocumentStore/Find", FullMethod(MethodFind))
}

func TestPackUnpack(t *testing.T) {
	id := bson.NewObjectID()
	msg, err := Pack(store.Record{
		FieldCollection: "user",
		FieldKey:        id,
		FieldRecord:     map[string]any{"n": int64(1)},
	})
	require.NoError(t, err)

	env, err := Unpack(msg)
	require.NoError(t, err)
	assert.Equal(t, "user", env[FieldCollection])
	assert.Equal(t, id, env[FieldKey])
	assert.Equal(t, map[string]any{"n": int64(1)}, env[FieldRecord])

	empty, err := Unpack(&wrapperspb.BytesValue{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Unpack(wrapperspb.Bytes([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		is   error
	}{
		{"not found", fmt.Errorf("find: %w", store.ErrNotFound), codes.NotFound, store.ErrNotFound},
		{"canceled", context.Canceled, codes.Canceled, context.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded, context.DeadlineExceeded},
		{"internal", errors.New("disk on fire"), codes.Internal, nil},
		{"passthrough", status.Error(codes.InvalidArgument, "bad"), codes.InvalidArgument, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ToStatus(tt.err)
			assert.Equal(t, tt.code, status.Code(st))

			back := FromStatus(st)
			assert.Equal(t, tt.code, status.Code(back))
			if tt.is != nil {
				assert.ErrorIs(t, back, tt.is)
			}
		})
	}
	assert.NoError(t, ToStatus(nil))
	assert.NoError(t, FromStatus(nil))
}
