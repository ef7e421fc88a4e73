package server

import (
	"context"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/session"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dungeon.v1.SessionService"

// SessionServiceServer is the server API of the session service. Every
// method takes and returns a structpb.Struct.
type SessionServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImportSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReplayFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetCell(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDimensions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleCell(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResizeBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadBoard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CollectCellOptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CellDistance(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddAbility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddEffect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GiveItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GiveAbility(context.Context, *structpb.Struct) (*structpb.Struct, error)

	MakeRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InsertRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SortRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExecuteRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExecutePending(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AdvanceRound(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetInitiative(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(SessionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = []struct {
	name string
	call unaryMethod
}{
	{"CreateSession", SessionServiceServer.CreateSession},
	{"ListSessions", SessionServiceServer.ListSessions},
	{"CloseSession", SessionServiceServer.CloseSession},
	{"ImportSession", SessionServiceServer.ImportSession},
	{"ExportSession", SessionServiceServer.ExportSession},
	{"ResetSession", SessionServiceServer.ResetSession},
	{"SaveSession", SessionServiceServer.SaveSession},
	{"LoadSession", SessionServiceServer.LoadSession},
	{"GetReplayFrame", SessionServiceServer.GetReplayFrame},
	{"GetCell", SessionServiceServer.GetCell},
	{"GetDimensions", SessionServiceServer.GetDimensions},
	{"GetBoard", SessionServiceServer.GetBoard},
	{"PlaceToken", SessionServiceServer.PlaceToken},
	{"ToggleCell", SessionServiceServer.ToggleCell},
	{"ResizeBoard", SessionServiceServer.ResizeBoard},
	{"LoadBoard", SessionServiceServer.LoadBoard},
	{"CollectCellOptions", SessionServiceServer.CollectCellOptions},
	{"CellDistance", SessionServiceServer.CellDistance},
	{"GetCharacter", SessionServiceServer.GetCharacter},
	{"AddCharacter", SessionServiceServer.AddCharacter},
	{"AddItem", SessionServiceServer.AddItem},
	{"AddAbility", SessionServiceServer.AddAbility},
	{"AddEffect", SessionServiceServer.AddEffect},
	{"GiveItem", SessionServiceServer.GiveItem},
	{"GiveAbility", SessionServiceServer.GiveAbility},
	{"MakeRequest", SessionServiceServer.MakeRequest},
	{"InsertRequests", SessionServiceServer.InsertRequests},
	{"SortRequests", SessionServiceServer.SortRequests},
	{"GetRequests", SessionServiceServer.GetRequests},
	{"CancelRequest", SessionServiceServer.CancelRequest},
	{"ExecuteRequest", SessionServiceServer.ExecuteRequest},
	{"ExecutePending", SessionServiceServer.ExecutePending},
	{"AdvanceRound", SessionServiceServer.AdvanceRound},
	{"SetInitiative", SessionServiceServer.SetInitiative},
}

// ServiceDesc describes the session service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods:     buildMethodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "dungeon/v1/session.proto",
}

func buildMethodDescs() []grpc.MethodDesc {
	descs := make([]grpc.MethodDesc, 0, len(methods))
	for _, m := range methods {
		descs = append(descs, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    methodHandler(m.name, m.call),
		})
	}
	return descs
}

// methodHandler adapts a service method to grpc's handler signature. Engine
// errors are converted to statuses before interceptors see them.
func methodHandler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			out, err := call(srv.(SessionServiceServer), ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, toStatus(err)
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterSessionService registers srv on s.
func RegisterSessionService(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// SessionServer implements SessionServiceServer on top of a session manager.
type SessionServer struct {
	manager *session.Manager
	logger  *zap.Logger
}

// NewSessionServer creates the service implementation.
func NewSessionServer(manager *session.Manager, logger *zap.Logger) *SessionServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionServer{manager: manager, logger: logger}
}

var _ SessionServiceServer = (*SessionServer)(nil)

// within runs fn on the session named by the request's session_id.
func (s *SessionServer) within(req *structpb.Struct, fn func(a args, g *game.Session) (*structpb.Struct, error)) (*structpb.Struct, error) {
	a := argsOf(req)
	id, err := a.sessionID()
	if err != nil {
		return nil, err
	}
	entry, err := s.manager.Lookup(id)
	if err != nil {
		return nil, err
	}
	var out *structpb.Struct
	err = entry.Do(func(g *game.Session) error {
		var err error
		out, err = fn(a, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func empty() *structpb.Struct { return &structpb.Struct{} }
