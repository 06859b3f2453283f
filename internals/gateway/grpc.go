package gateway

import (
	"callbackbroker/internals/models"
	"context"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName     = "broker.v1.Broker"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
	PublishMethod   = "/" + ServiceName + "/Publish"

	fieldCallbackURL = "client_callback_url"
	fieldAuthor      = "author"
	fieldContents    = "contents"
)

// BrokerServer is the gRPC service. Requests travel as google.protobuf.Struct
// with the same field names as the REST bodies; responses are Empty.
type BrokerServer interface {
	Subscribe(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var brokerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BrokerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Subscribe", Handler: subscribeHandler},
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "broker/v1/broker.proto",
}

func RegisterBrokerServer(s grpc.ServiceRegistrar, srv BrokerServer) {
	s.RegisterService(&brokerServiceDesc, srv)
}

func subscribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrokerServer).Subscribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubscribeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BrokerServer).Subscribe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrokerServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PublishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BrokerServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func NewSubscribeRequest(callbackURL string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{fieldCallbackURL: callbackURL})
}

func NewPublishRequest(message models.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldAuthor:   message.Author,
		fieldContents: message.Contents,
	})
}

type GrpcGateWay struct {
	broker        models.Broker
	logger        logrus.FieldLogger
	health        *health.Server
	maxConcurrent int
	inFlight      *semaphore.Weighted
}

// NewGrpcGateWay bounds broker calls to maxConcurrent across all connections.
// Calls over the limit wait for a slot or for their deadline.
func NewGrpcGateWay(broker models.Broker, logger logrus.FieldLogger, maxConcurrent int) *GrpcGateWay {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &GrpcGateWay{
		broker:        broker,
		logger:        logger,
		health:        health.NewServer(),
		maxConcurrent: maxConcurrent,
		inFlight:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// NewServer builds a grpc.Server with the broker and health services registered.
func (gw *GrpcGateWay) NewServer() *grpc.Server {
	server := grpc.NewServer(
		grpc.MaxConcurrentStreams(uint32(gw.maxConcurrent)),
		grpc.ChainUnaryInterceptor(gw.logUnary, gw.limitUnary),
	)
	RegisterBrokerServer(server, gw)
	healthpb.RegisterHealthServer(server, gw.health)
	gw.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	gw.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return server
}

// Drain flips the health status to NOT_SERVING so clients fail over.
func (gw *GrpcGateWay) Drain() {
	gw.health.Shutdown()
}

func (gw *GrpcGateWay) Subscribe(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	callbackURL, err := stringField(req, fieldCallbackURL)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := gw.broker.Subscribe(ctx, callbackURL); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (gw *GrpcGateWay) Publish(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	author, err := stringField(req, fieldAuthor)
	if err != nil {
		return nil, toStatus(err)
	}
	contents, err := stringField(req, fieldContents)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := gw.broker.Publish(ctx, models.Message{Author: author, Contents: contents}); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (gw *GrpcGateWay) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	entry := gw.logger.WithFields(logrus.Fields{
		"method": info.FullMethod,
		"code":   status.Code(err).String(),
	})
	if err != nil {
		entry.WithError(err).Info("grpc request rejected")
	} else {
		entry.Debug("grpc request")
	}
	return resp, err
}

// limitUnary holds a slot of the request pool for broker methods. Health
// checks are not counted.
func (gw *GrpcGateWay) limitUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if info.FullMethod != SubscribeMethod && info.FullMethod != PublishMethod {
		return handler(ctx, req)
	}
	if err := gw.inFlight.Acquire(ctx, 1); err != nil {
		return nil, toStatus(err)
	}
	defer gw.inFlight.Release(1)
	return handler(ctx, req)
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", models.ErrMalformedInput, name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", models.ErrMalformedInput, name)
	}
	return s.StringValue, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, models.ErrMalformedInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrBrokerClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "broker: %v", err)
	}
}
