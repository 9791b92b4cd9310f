// Package rpc defines the DocumentStore gRPC protocol shared by the server
// and the remote store client. Every method takes and returns a
// wrapperspb.BytesValue holding a BSON envelope, so no generated code is
// needed.
package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/odm/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "odm.v1.DocumentStore"

// Method names.
const (
	MethodHealth      = "Health"
	MethodUpsert      = "Upsert"
	MethodFind        = "Find"
	MethodDelete      = "Delete"
	MethodDrop        = "Drop"
	MethodList        = "List"
	MethodCollections = "Collections"
)

// Methods lists every method in registration order.
var Methods = []string{
	MethodHealth,
	MethodUpsert,
	MethodFind,
	MethodDelete,
	MethodDrop,
	MethodList,
	MethodCollections,
}

// Envelope field names.
const (
	FieldCollection  = "collection"
	FieldKey         = "key"
	FieldRecord      = "record"
	FieldRecords     = "records"
	FieldCollections = "collections"
	FieldStatus      = "status"
)

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Pack encodes an envelope.
func Pack(env store.Record) (*wrapperspb.BytesValue, error) {
	data, err := store.MarshalRecord(env)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(data), nil
}

// Unpack decodes an envelope. An empty message is an empty envelope.
func Unpack(msg *wrapperspb.BytesValue) (store.Record, error) {
	if len(msg.GetValue()) == 0 {
		return store.Record{}, nil
	}
	return store.UnmarshalRecord(msg.GetValue())
}

// ToStatus maps store errors onto gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}

// FromStatus reverses ToStatus on the client side so callers can test
// errors with errors.Is.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return &statusError{st: st, is: store.ErrNotFound}
	case codes.Canceled:
		return &statusError{st: st, is: context.Canceled}
	case codes.DeadlineExceeded:
		return &statusError{st: st, is: context.DeadlineExceeded}
	}
	return err
}

type statusError struct {
	st *status.Status
	is error
}

func (e *statusError) Error() string              { return e.st.Message() }
func (e *statusError) Unwrap() error              { return e.is }
func (e *statusError) GRPCStatus() *status.Status { return e.st }
