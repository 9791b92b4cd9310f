package server

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/odm/internal/rpc"
	"github.com/alfredjeanlab/odm/internal/store"
)

// envelopeHandler is the handler type registered for the DocumentStore service.
type envelopeHandler interface {
	handle(ctx context.Context, method string, in store.Record) (store.Record, error)
}

// StoreService serves a store.Store over gRPC.
type StoreService struct {
	store store.Store
}

// NewStoreService wraps st.
func NewStoreService(st store.Store) *StoreService {
	return &StoreService{store: st}
}

func (s *StoreService) handle(ctx context.Context, method string, in store.Record) (store.Record, error) {
	if method == rpc.MethodHealth {
		return store.Record{rpc.FieldStatus: "ok"}, nil
	}
	if method == rpc.MethodCollections {
		names, err := s.store.Collections(ctx)
		if err != nil {
			return nil, rpc.ToStatus(err)
		}
		return store.Record{rpc.FieldCollections: stringsToAny(names)}, nil
	}

	coll, _ := in[rpc.FieldCollection].(string)
	if coll == "" {
		return nil, status.Error(codes.InvalidArgument, "collection is required")
	}
	key := in[rpc.FieldKey]
	needKey := func() error {
		if key == nil {
			return status.Error(codes.InvalidArgument, "key is required")
		}
		return nil
	}

	switch method {
	case rpc.MethodUpsert:
		rec, ok := in[rpc.FieldRecord].(map[string]any)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "record is required")
		}
		got, err := s.store.Upsert(ctx, coll, key, rec)
		if err != nil {
			return nil, rpc.ToStatus(err)
		}
		return store.Record{rpc.FieldKey: got}, nil
	case rpc.MethodFind:
		if err := needKey(); err != nil {
			return nil, err
		}
		rec, err := s.store.Find(ctx, coll, key)
		if err != nil {
			return nil, rpc.ToStatus(err)
		}
		return store.Record{rpc.FieldRecord: rec}, nil
	case rpc.MethodDelete:
		if err := needKey(); err != nil {
			return nil, err
		}
		return store.Record{}, rpc.ToStatus(s.store.Delete(ctx, coll, key))
	case rpc.MethodDrop:
		return store.Record{}, rpc.ToStatus(s.store.Drop(ctx, coll))
	case rpc.MethodList:
		recs, err := s.store.List(ctx, coll)
		if err != nil {
			return nil, rpc.ToStatus(err)
		}
		out := make([]any, len(recs))
		for i, r := range recs {
			out[i] = r
		}
		return store.Record{rpc.FieldRecords: out}, nil
	}
	return nil, status.Errorf(codes.Unimplemented, "unknown method %s", method)
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func unaryMethod(name string) grpc.MethodDesc {
	serve := func(ctx context.Context, srv envelopeHandler, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
		env, err := rpc.Unpack(req)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		resp, err := srv.handle(ctx, name, env)
		if err != nil {
			return nil, err
		}
		out, err := rpc.Pack(resp)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.BytesValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := srv.(envelopeHandler)
			if interceptor == nil {
				return serve(ctx, h, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rpc.FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return serve(ctx, h, req.(*wrapperspb.BytesValue))
			})
		},
	}
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: rpc.ServiceName,
		HandlerType: (*envelopeHandler)(nil),
		Metadata:    "odm/v1/store.proto",
	}
	for _, m := range rpc.Methods {
		desc.Methods = append(desc.Methods, unaryMethod(m))
	}
	return desc
}

// NewGRPCServer creates a gRPC server with recovery, logging and auth
// interceptors, registers the DocumentStore service over st and enables
// reflection.
func NewGRPCServer(st store.Store, logger *zap.Logger, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
			AuthInterceptor(authToken),
		),
	)
	srv.RegisterService(serviceDesc(), NewStoreService(st))
	reflection.Register(srv)
	return srv
}
