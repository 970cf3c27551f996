package api

import (
	"context"
	"encoding/json"
	"fmt"

	"barberbook/internal/service"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// The scheduling service speaks google.protobuf.Struct on the wire so
// clients need no generated stubs; field names match the JSON API.
const (
	SchedulingServiceName = "barberbook.scheduling.v1.SchedulingService"

	methodGetAvailability   = "/" + SchedulingServiceName + "/GetAvailability"
	methodSubmitBooking     = "/" + SchedulingServiceName + "/SubmitBooking"
	methodCancelAppointment = "/" + SchedulingServiceName + "/CancelAppointment"
)

type SchedulingServer interface {
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var schedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: SchedulingServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetAvailability", SchedulingServer.GetAvailability),
		unaryMethod("SubmitBooking", SchedulingServer.SubmitBooking),
		unaryMethod("CancelAppointment", SchedulingServer.CancelAppointment),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "barberbook/scheduling/v1/scheduling.proto",
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&schedulingServiceDesc, srv)
}

func unaryMethod(name string, call func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + SchedulingServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SchedulingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SchedulingService adapts the service layer to gRPC.
type SchedulingService struct {
	svc    Services
	logger *zerolog.Logger
}

func NewSchedulingService(svc Services, logger *zerolog.Logger) *SchedulingService {
	return &SchedulingService{svc: svc, logger: logger}
}

func (s *SchedulingService) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.AvailabilityRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	if err := authorizeBusiness(ctx, in.BusinessID); err != nil {
		return nil, grpcError(err)
	}

	slots, err := s.svc.Availability.GetAvailability(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return toStruct(map[string]any{"date": in.Date, "slots": slots})
}

func (s *SchedulingService) SubmitBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.BookingRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	if err := authorizeBusiness(ctx, in.BusinessID); err != nil {
		return nil, grpcError(err)
	}

	appt, err := s.svc.Booking.SubmitBooking(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return toStruct(appt)
}

func (s *SchedulingService) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		BusinessID    string `json:"business_id"`
		AppointmentID string `json:"appointment_id"`
		Version       int64  `json:"version"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	if err := authorizeBusiness(ctx, in.BusinessID); err != nil {
		return nil, grpcError(err)
	}

	appt, err := s.svc.Booking.Cancel(ctx, in.BusinessID, in.AppointmentID, in.Version)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return toStruct(appt)
}

func (s *SchedulingService) fail(ctx context.Context, err error) error {
	gerr := grpcError(err)
	if code, _ := describeError(err); code >= 500 {
		requestLogger(ctx, s.logger).Error().Err(err).Msg("grpc call failed")
	}
	return gerr
}

// fromStruct decodes a Struct into dst through its JSON form. Numbers
// arrive as float64, so integer fields must carry whole values.
func fromStruct(src *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(src)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, grpcError(err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}
