package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"animeranker/internal/grpcserver"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "gRPC server address")
	token := flag.String("token", os.Getenv("ANIMERANKER_TOKEN"), "bearer token (optional)")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("usage: grpc-client [flags] <list|get|rate|ratings|stats> [flags]")
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("grpc dial failed: %v", err)
	}
	defer conn.Close()
	client := grpcserver.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if *token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+*token)
	}

	var resp any
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		q := fs.String("q", "", "search")
		genre := fs.String("genre", "", "genre")
		sortKey := fs.String("sort", "", "popularity|rating|title|year")
		limit := fs.Int("limit", 24, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args[1:])
		resp, err = client.ListAnime(ctx, &grpcserver.ListAnimeRequest{
			Q: *q, Genre: *genre, Sort: *sortKey, Limit: int32(*limit), Offset: int32(*offset),
		})
	case "get":
		fs := flag.NewFlagSet("get", flag.ExitOnError)
		id := fs.Int("id", 0, "local id")
		malID := fs.Int("mal", 0, "MAL id")
		_ = fs.Parse(args[1:])
		resp, err = client.GetAnime(ctx, &grpcserver.GetAnimeRequest{Id: int32(*id), MalId: int32(*malID)})
	case "rate":
		fs := flag.NewFlagSet("rate", flag.ExitOnError)
		animeID := fs.Int("anime", 0, "MAL id")
		rating := fs.Int("rating", 0, "1-10")
		_ = fs.Parse(args[1:])
		resp, err = client.RateAnime(ctx, &grpcserver.RateAnimeRequest{AnimeId: int32(*animeID), Rating: int32(*rating)})
	case "ratings":
		fs := flag.NewFlagSet("ratings", flag.ExitOnError)
		user := fs.String("user", "", "user id")
		_ = fs.Parse(args[1:])
		resp, err = client.GetUserRatings(ctx, &grpcserver.GetUserRatingsRequest{UserId: *user})
	case "stats":
		fs := flag.NewFlagSet("stats", flag.ExitOnError)
		user := fs.String("user", "", "user id")
		_ = fs.Parse(args[1:])
		resp, err = client.GetStats(ctx, &grpcserver.GetStatsRequest{UserId: *user})
	default:
		log.Fatalf("unknown command %q", args[0])
	}
	if err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatalf("encode output: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}
