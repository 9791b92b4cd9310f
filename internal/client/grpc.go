package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/odm/internal/rpc"
	"github.com/alfredjeanlab/odm/internal/store"
)

// Remote implements store.Store against a DocumentStore gRPC server.
type Remote struct {
	conn *grpc.ClientConn
}

var _ store.Store = (*Remote)(nil)

// tokenCreds attaches a bearer token to every RPC.
type tokenCreds string

func (t tokenCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(t)}, nil
}

func (tokenCreds) RequireTransportSecurity() bool { return false }

// Dial connects to addr. A non-empty token is sent as a bearer token.
func Dial(addr, token string, opts ...grpc.DialOption) (*Remote, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(tokenCreds(token)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &Remote{conn: conn}, nil
}

func (r *Remote) call(ctx context.Context, method string, env store.Record) (store.Record, error) {
	in, err := rpc.Pack(env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out := new(wrapperspb.BytesValue)
	if err := r.conn.Invoke(ctx, rpc.FullMethod(method), in, out); err != nil {
		return nil, rpc.FromStatus(err)
	}
	return rpc.Unpack(out)
}

// Health returns the server status string.
func (r *Remote) Health(ctx context.Context) (string, error) {
	resp, err := r.call(ctx, rpc.MethodHealth, store.Record{})
	if err != nil {
		return "", err
	}
	s, _ := resp[rpc.FieldStatus].(string)
	return s, nil
}

func (r *Remote) Upsert(ctx context.Context, collection string, key any, rec store.Record) (any, error) {
	env := store.Record{rpc.FieldCollection: collection, rpc.FieldRecord: rec}
	if key != nil {
		env[rpc.FieldKey] = key
	}
	resp, err := r.call(ctx, rpc.MethodUpsert, env)
	if err != nil {
		return nil, err
	}
	return resp[rpc.FieldKey], nil
}

func (r *Remote) Find(ctx context.Context, collection string, key any) (store.Record, error) {
	resp, err := r.call(ctx, rpc.MethodFind, store.Record{rpc.FieldCollection: collection, rpc.FieldKey: key})
	if err != nil {
		return nil, err
	}
	rec, ok := resp[rpc.FieldRecord].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("find %s: malformed response", collection)
	}
	return rec, nil
}

func (r *Remote) Delete(ctx context.Context, collection string, key any) error {
	_, err := r.call(ctx, rpc.MethodDelete, store.Record{rpc.FieldCollection: collection, rpc.FieldKey: key})
	return err
}

func (r *Remote) Drop(ctx context.Context, collection string) error {
	_, err := r.call(ctx, rpc.MethodDrop, store.Record{rpc.FieldCollection: collection})
	return err
}

func (r *Remote) List(ctx context.Context, collection string) ([]store.Record, error) {
	resp, err := r.call(ctx, rpc.MethodList, store.Record{rpc.FieldCollection: collection})
	if err != nil {
		return nil, err
	}
	items, _ := resp[rpc.FieldRecords].([]any)
	out := make([]store.Record, 0, len(items))
	for _, it := range items {
		rec, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("list %s: malformed record %T", collection, it)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Remote) Collections(ctx context.Context) ([]string, error) {
	resp, err := r.call(ctx, rpc.MethodCollections, store.Record{})
	if err != nil {
		return nil, err
	}
	items, _ := resp[rpc.FieldCollections].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Remote) Close() error {
	return r.conn.Close()
}
