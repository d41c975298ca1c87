package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"equiminer/internal/miner"
	"equiminer/pkg/equihash"
)

// MinerServer implements MinerServiceServer on top of a miner
type MinerServer struct {
	miner    *miner.Miner
	verifier *equihash.Verifier
	registry miner.Registry
}

// NewMinerServer creates the service. registry may be nil, in which case
// an in-memory registry is used.
func NewMinerServer(m *miner.Miner, registry miner.Registry) (*MinerServer, error) {
	v, err := equihash.NewVerifier(m.Params())
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = miner.NewMemoryRegistry()
	}
	return &MinerServer{miner: m, verifier: v, registry: registry}, nil
}

func stringField(in *structpb.Struct, name string) string {
	if v, ok := in.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Verify implements MinerServiceServer
func (s *MinerServer) Verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	header, err := hex.DecodeString(stringField(req, "header"))
	if err != nil || len(header) == 0 {
		return nil, status.Error(codes.InvalidArgument, "header must be non-empty hex")
	}
	sol, err := hex.DecodeString(stringField(req, "solution"))
	if err != nil || len(sol) == 0 {
		return nil, status.Error(codes.InvalidArgument, "solution must be non-empty hex")
	}

	out := map[string]interface{}{"valid": true}
	if err := s.verifier.Validate(header, sol); err != nil {
		out["valid"] = false
		out["reason"] = err.Error()
		var serr *equihash.SolutionError
		if errors.As(err, &serr) {
			out["reason"] = string(serr.Reason)
			out["round"] = serr.Round
		}
	}
	return structpb.NewStruct(out)
}

// SubmitShare implements MinerServiceServer
func (s *MinerServer) SubmitShare(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	share := miner.ShareRequest{
		JobID:       stringField(req, "job_id"),
		ExtraNonce1: stringField(req, "extra_nonce1"),
		ExtraNonce2: stringField(req, "extra_nonce2"),
		Time:        stringField(req, "time"),
		Solution:    stringField(req, "solution"),
	}
	res, err := miner.CheckShare(s.verifier, s.miner.CurrentJob(), share, s.registry)
	if err != nil {
		var serr *miner.ShareError
		if errors.As(err, &serr) {
			return structpb.NewStruct(map[string]interface{}{
				"accepted": false,
				"code":     serr.Code,
				"message":  serr.Message,
			})
		}
		return nil, status.Errorf(codes.Internal, "share check failed: %v", err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"accepted": true,
		"job_id":   res.JobID,
		"hash":     res.Hash,
	})
}

// GetSpeed implements MinerServiceServer
func (s *MinerServer) GetSpeed(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.miner.Speed().Snapshot()
	return structpb.NewStruct(map[string]interface{}{
		"elapsed_seconds": snap.Elapsed.Seconds(),
		"hashes":          snap.Hashes,
		"solutions":       snap.Solutions,
		"shares":          snap.Shares,
		"accepted":        snap.Accepted,
		"rejected":        snap.Rejected,
		"stale":           snap.Stale,
		"failed":          snap.Failed,
		"hash_rate":       snap.HashRate,
		"solution_rate":   snap.SolutionRate,
	})
}

// GetWorkers implements MinerServiceServer
func (s *MinerServer) GetWorkers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	workers := s.miner.Workers()
	items := make([]interface{}, 0, len(workers))
	for _, w := range workers {
		items = append(items, map[string]interface{}{
			"worker":      w.Worker,
			"solver":      w.Solver,
			"kind":        w.Kind,
			"device_info": w.DeviceInfo,
			"state":       w.State,
			"job_id":      w.JobID,
			"solves":      w.Solves,
		})
	}
	return structpb.NewList(items)
}

// Notify implements MinerServiceServer
func (s *MinerServer) Notify(ctx context.Context, req *structpb.ListValue) (*wrapperspb.StringValue, error) {
	job, err := s.miner.Notify(req.AsSlice())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.String(job.ID), nil
}

// SetNonce1 implements MinerServiceServer
func (s *MinerServer) SetNonce1(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.miner.SetServerNonce(req.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &emptypb.Empty{}, nil
}

// Serve registers srv on a new gRPC server and serves lis until ctx is
// done.
func Serve(ctx context.Context, lis net.Listener, srv MinerServiceServer) error {
	gs := grpc.NewServer()
	RegisterMinerServiceServer(gs, srv)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down gRPC server...")
		gs.GracefulStop()
	}()

	log.Infof("gRPC server listening on %s", lis.Addr())
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
