package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "animeranker.v1.RankerService"

type RankerServiceServer interface {
	ListAnime(context.Context, *ListAnimeRequest) (*ListAnimeResponse, error)
	GetAnime(context.Context, *GetAnimeRequest) (*GetAnimeResponse, error)
	RateAnime(context.Context, *RateAnimeRequest) (*RateAnimeResponse, error)
	GetUserRatings(context.Context, *GetUserRatingsRequest) (*GetUserRatingsResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error)
}

func RegisterRankerServiceServer(s grpc.ServiceRegistrar, srv RankerServiceServer) {
	s.RegisterService(&RankerServiceDesc, srv)
}

// unary builds a method handler for one RPC.
func unary[Req, Resp any](name string, call func(RankerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RankerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RankerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var RankerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RankerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListAnime", RankerServiceServer.ListAnime),
		unary("GetAnime", RankerServiceServer.GetAnime),
		unary("RateAnime", RankerServiceServer.RateAnime),
		unary("GetUserRatings", RankerServiceServer.GetUserRatings),
		unary("GetStats", RankerServiceServer.GetStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "animeranker/v1/ranker.json",
}

// Client calls RankerService over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAnime(ctx context.Context, in *ListAnimeRequest, opts ...grpc.CallOption) (*ListAnimeResponse, error) {
	return invoke[ListAnimeResponse](ctx, c.cc, "ListAnime", in, opts)
}

func (c *Client) GetAnime(ctx context.Context, in *GetAnimeRequest, opts ...grpc.CallOption) (*GetAnimeResponse, error) {
	return invoke[GetAnimeResponse](ctx, c.cc, "GetAnime", in, opts)
}

func (c *Client) RateAnime(ctx context.Context, in *RateAnimeRequest, opts ...grpc.CallOption) (*RateAnimeResponse, error) {
	return invoke[RateAnimeResponse](ctx, c.cc, "RateAnime", in, opts)
}

func (c *Client) GetUserRatings(ctx context.Context, in *GetUserRatingsRequest, opts ...grpc.CallOption) (*GetUserRatingsResponse, error) {
	return invoke[GetUserRatingsResponse](ctx, c.cc, "GetUserRatings", in, opts)
}

func (c *Client) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*GetStatsResponse, error) {
	return invoke[GetStatsResponse](ctx, c.cc, "GetStats", in, opts)
}
