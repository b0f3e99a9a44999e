package grpcserver

import (
	"context"
	"encoding/base64"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"ownkit/service"
)

// Leases is what the server needs from the lease service.
type Leases interface {
	Acquire(size int) (service.LeaseInfo, error)
	Share(lease uint64) (service.LeaseInfo, error)
	Observe(lease uint64) (service.WatchInfo, error)
	Promote(watch uint64) (service.LeaseInfo, error)
	Release(lease uint64) error
	Forget(watch uint64) error
	Read(lease uint64, off, n int) ([]byte, error)
	Write(lease uint64, off int, p []byte) error
	Snapshot() []service.LeaseInfo
	Retired() int
	RetireDropped() uint64
}

// StatsSource reports lifecycle counters.
type StatsSource interface {
	Stats() service.Stats
}

// Server adapts LeaseService to gRPC.
type Server struct {
	leases Leases
	stats  StatsSource
}

var _ LeasesServer = (*Server)(nil)

func NewServer(leases Leases, stats StatsSource) *Server {
	return &Server{leases: leases, stats: stats}
}

// -------------------- Commands --------------------

// Acquire: {size} -> lease
func (s *Server) Acquire(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	size, err := intField(in, "size")
	if err != nil {
		return nil, err
	}
	info, err := s.leases.Acquire(size)
	if err != nil {
		return nil, toStatus(err)
	}
	return leaseStruct(info)
}

// Share: {lease} -> lease
func (s *Server) Share(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "lease")
	if err != nil {
		return nil, err
	}
	info, err := s.leases.Share(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return leaseStruct(info)
}

// Observe: {lease} -> watch
func (s *Server) Observe(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "lease")
	if err != nil {
		return nil, err
	}
	info, err := s.leases.Observe(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return watchStruct(info)
}

// Promote: {watch} -> lease
func (s *Server) Promote(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "watch")
	if err != nil {
		return nil, err
	}
	info, err := s.leases.Promote(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return leaseStruct(info)
}

// Release: {lease} -> {}
func (s *Server) Release(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "lease")
	if err != nil {
		return nil, err
	}
	if err := s.leases.Release(id); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

// Forget: {watch} -> {}
func (s *Server) Forget(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "watch")
	if err != nil {
		return nil, err
	}
	if err := s.leases.Forget(id); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

// Read: {lease, offset, length} -> {data (base64)}
func (s *Server) Read(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "lease")
	if err != nil {
		return nil, err
	}
	off, err := intField(in, "offset")
	if err != nil {
		return nil, err
	}
	n, err := intField(in, "length")
	if err != nil {
		return nil, err
	}
	data, err := s.leases.Read(id, off, n)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"data": base64.StdEncoding.EncodeToString(data),
	})
}

// Write: {lease, offset, data (base64)} -> {}
func (s *Server) Write(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in, "lease")
	if err != nil {
		return nil, err
	}
	off, err := intField(in, "offset")
	if err != nil {
		return nil, err
	}
	raw := in.GetFields()["data"].GetStringValue()
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "data: %v", err)
	}
	if err := s.leases.Write(id, off, data); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

// -------------------- Queries --------------------

// Snapshot: {} -> {leases: [lease...]}
func (s *Server) Snapshot(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	infos := s.leases.Snapshot()
	list := make([]any, 0, len(infos))
	for _, info := range infos {
		list = append(list, leaseMap(info))
	}
	return structpb.NewStruct(map[string]any{"leases": list})
}

// Stats: {} -> lifecycle counters
func (s *Server) Stats(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := s.stats.Stats()
	return structpb.NewStruct(map[string]any{
		"created":          st.Created,
		"promoted":         st.Promoted,
		"destroyed":        st.Destroyed,
		"freed":            st.Freed,
		"detached":         st.Detached,
		"construct_failed": st.ConstructFailed,
		"deleter_errors":   st.DeleterErrors,
		"dropped":          st.Dropped,
		"live_objects":     st.LiveObjects,
		"live_blocks":      st.LiveBlocks,
		"retired":          s.leases.Retired(),
		"retire_dropped":   s.leases.RetireDropped(),
	})
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every call at debug and failures at warn.
func UnaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = log.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("call failed",
				zap.String("method", info.FullMethod),
				zap.Stringer("code", status.Code(err)),
				zap.Error(err))
			return resp, err
		}
		log.Debug("call", zap.String("method", info.FullMethod))
		return resp, nil
	}
}

// -------------------- Converters --------------------

func leaseMap(info service.LeaseInfo) map[string]any {
	return map[string]any{
		"lease":     info.Lease,
		"resource":  info.Resource,
		"size":      info.Size,
		"use_count": info.UseCount,
	}
}

func leaseStruct(info service.LeaseInfo) (*structpb.Struct, error) {
	return structpb.NewStruct(leaseMap(info))
}

func watchStruct(info service.WatchInfo) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"watch":    info.Watch,
		"resource": info.Resource,
		"expired":  info.Expired,
	})
}

func number(in *structpb.Struct, name string) (float64, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing field %q", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "field %q must be a number", name)
	}
	f := n.NumberValue
	if f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "field %q must be a non-negative integer", name)
	}
	return f, nil
}

func idField(in *structpb.Struct, name string) (uint64, error) {
	f, err := number(in, name)
	return uint64(f), err
}

func intField(in *structpb.Struct, name string) (int, error) {
	f, err := number(in, name)
	if err == nil && f > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "field %q too large", name)
	}
	return int(f), err
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownLease), errors.Is(err, service.ErrUnknownWatch):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrInvalidSize), errors.Is(err, service.ErrOutOfRange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

