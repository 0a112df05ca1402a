package grpc

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const tasksServiceName = "taskmanager.v1.Tasks"

// TaskManager is the task use-case surface served over gRPC.
type TaskManager interface {
	Create(ctx context.Context, title, description string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) (*services.TaskPage, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TasksServer is implemented by GRPCServer. Messages are protobuf
// well-known types so the service needs no generated code.
type TasksServer interface {
	ListTasks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetTask(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	CreateTask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateTask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteTask(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
}

var tasksServiceDesc = grpc.ServiceDesc{
	ServiceName: tasksServiceName,
	HandlerType: (*TasksServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("List", newStruct, func(s TasksServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ListTasks(ctx, in)
		}),
		unaryMethod("Get", newStringValue, func(s TasksServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.GetTask(ctx, in)
		}),
		unaryMethod("Create", newStruct, func(s TasksServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.CreateTask(ctx, in)
		}),
		unaryMethod("Update", newStruct, func(s TasksServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.UpdateTask(ctx, in)
		}),
		unaryMethod("Delete", newStringValue, func(s TasksServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.DeleteTask(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskmanager/v1/tasks.proto",
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newStringValue() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

func unaryMethod[Req any](name string, newReq func() Req, call func(TasksServer, context.Context, Req) (any, error)) grpc.MethodDesc {
	fullMethod := "/" + tasksServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TasksServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TasksServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func (s *GRPCServer) ListTasks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var (
		f   models.TaskFilter
		err error
	)
	if f.IsCompleted, err = optBool(in, "is_completed"); err != nil {
		return nil, s.statusError(ctx, err)
	}
	if f.Limit, err = optInt(in, "limit"); err != nil {
		return nil, s.statusError(ctx, err)
	}
	if f.Offset, err = optInt(in, "offset"); err != nil {
		return nil, s.statusError(ctx, err)
	}

	page, err := s.tasks.List(ctx, f)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}

	items := make([]any, 0, len(page.Tasks))
	for i := range page.Tasks {
		items = append(items, taskFields(&page.Tasks[i]))
	}
	return s.reply(ctx, map[string]any{
		"tasks":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (s *GRPCServer) GetTask(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID(in.GetValue())
	if err != nil {
		return nil, s.statusError(ctx, err)
	}

	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	return s.reply(ctx, taskFields(task))
}

func (s *GRPCServer) CreateTask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	title, err := optString(in, "title")
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	description, err := optString(in, "description")
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	if title == nil {
		return nil, s.statusError(ctx, common.ErrValidation)
	}

	var desc string
	if description != nil {
		desc = *description
	}

	task, err := s.tasks.Create(ctx, *title, desc)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	return s.reply(ctx, taskFields(task))
}

func (s *GRPCServer) UpdateTask(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rawID, err := optString(in, "id")
	if err != nil || rawID == nil {
		return nil, s.statusError(ctx, common.ErrValidation)
	}
	id, err := parseID(*rawID)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}

	var patch models.TaskPatch
	if patch.Title, err = optString(in, "title"); err != nil {
		return nil, s.statusError(ctx, err)
	}
	if patch.Description, err = optString(in, "description"); err != nil {
		return nil, s.statusError(ctx, err)
	}
	if patch.IsCompleted, err = optBool(in, "is_completed"); err != nil {
		return nil, s.statusError(ctx, err)
	}

	task, err := s.tasks.Update(ctx, id, patch)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	return s.reply(ctx, taskFields(task))
}

func (s *GRPCServer) DeleteTask(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id, err := parseID(in.GetValue())
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return nil, s.statusError(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) reply(ctx context.Context, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.statusError(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) statusError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, common.ErrorNotFound.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, common.ErrValidation.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrServiceUnavailable):
		return status.Error(codes.Unavailable, common.ErrServiceUnavailable.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// A malformed id cannot name an existing row.
func parseID(v string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, common.ErrorNotFound
	}
	return id, nil
}

func taskFields(t *models.Task) map[string]any {
	return map[string]any{
		"id":           t.ID.String(),
		"user_id":      t.UserID.String(),
		"title":        t.Title,
		"description":  t.Description,
		"is_completed": t.IsCompleted,
		"created_at":   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func field(in *structpb.Struct, key string) *structpb.Value {
	v, ok := in.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	return v
}

func optString(in *structpb.Struct, key string) (*string, error) {
	v := field(in, key)
	if v == nil {
		return nil, nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, common.ErrValidation
	}
	return &sv.StringValue, nil
}

func optBool(in *structpb.Struct, key string) (*bool, error) {
	v := field(in, key)
	if v == nil {
		return nil, nil
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, common.ErrValidation
	}
	return &bv.BoolValue, nil
}

// optInt reads a whole number; an absent key reads as 0.
func optInt(in *structpb.Struct, key string) (int, error) {
	v := field(in, key)
	if v == nil {
		return 0, nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, common.ErrValidation
	}
	n := nv.NumberValue
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, common.ErrValidation
	}
	return int(n), nil
}
