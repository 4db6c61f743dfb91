package grpcserver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"orderledger/domain/ledger"
	"orderledger/infra/logging"
	"orderledger/service"
)

// Server adapts LedgerService to gRPC.
type Server struct {
	svc *service.LedgerService
}

var _ LedgerServer = (*Server)(nil)

func NewServer(svc *service.LedgerService) *Server {
	return &Server{svc: svc}
}

// New builds a grpc.Server with the ledger service and request logging.
func New(svc *service.LedgerService, log *zap.Logger) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryLogger(logging.OrNop(log))))
	RegisterLedgerServer(gs, NewServer(svc))
	return gs
}

// -------------------- Commands --------------------

func (s *Server) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	side, err := ledger.ParseSide(req.Side)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, err := s.svc.Submit(ctx, side, req.Amount, req.Price)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SubmitOrderResponse{ID: id}, nil
}

// -------------------- Queries --------------------

func (s *Server) Render(ctx context.Context, _ *RenderRequest) (*RenderResponse, error) {
	report, err := s.svc.Render(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RenderResponse{Report: report}, nil
}

func (s *Server) GetSnapshot(ctx context.Context, _ *GetSnapshotRequest) (*GetSnapshotResponse, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetSnapshotResponse{Snapshot: snap}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidSide):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// UnaryLogger logs every call with its method, code and latency.
func UnaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			log.Warn("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("grpc call", fields...)
		}
		return resp, err
	}
}
