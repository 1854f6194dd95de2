package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"animeranker/internal/auth"
	"animeranker/pkg/models"
	"animeranker/pkg/utils"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type animeListResponse struct {
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Data   []models.Anime `json:"data"`
}

type cli struct {
	client    *http.Client
	baseURL   string
	tokenPath string
}

func main() {
	global := flag.NewFlagSet("animeranker", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	c := &cli{
		client:    &http.Client{Timeout: 15 * time.Second},
		baseURL:   strings.TrimRight(*baseURL, "/"),
		tokenPath: *tokenPath,
	}

	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	switch cmd {
	case "anime":
		c.handleAnime(ctx, sub, rest)
	case "rate":
		c.handleRate(ctx, args[1:])
	case "ratings":
		c.handleRatings(ctx, args[1:])
	case "stats":
		c.handleStats(ctx, args[1:])
	case "token":
		c.handleToken(sub, rest)
	case "export":
		c.handleExport(ctx, sub, rest)
	case "import":
		c.handleImport(ctx, args[1:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func (c *cli) handleAnime(ctx context.Context, sub string, args []string) {
	switch sub {
	case "popular":
		fs := flag.NewFlagSet("anime popular", flag.ExitOnError)
		page := fs.Int("page", 1, "page")
		limit := fs.Int("limit", 24, "page size")
		_ = fs.Parse(args)

		c.printList(ctx, "/api/anime/popular", url.Values{
			"page":  {strconv.Itoa(*page)},
			"limit": {strconv.Itoa(*limit)},
		})
	case "search":
		fs := flag.NewFlagSet("anime search", flag.ExitOnError)
		q := fs.String("q", "", "search query")
		page := fs.Int("page", 1, "page")
		_ = fs.Parse(args)

		if strings.TrimSpace(*q) == "" {
			log.Fatal("q is required")
		}
		c.printList(ctx, "/api/anime/search", url.Values{"q": {*q}, "page": {strconv.Itoa(*page)}})
	case "show":
		fs := flag.NewFlagSet("anime show", flag.ExitOnError)
		id := fs.Int("id", 0, "local anime id")
		_ = fs.Parse(args)

		if *id <= 0 {
			log.Fatal("id is required")
		}
		var resp struct {
			Data models.Anime `json:"data"`
		}
		if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/api/anime/"+strconv.Itoa(*id), c.optionalToken(), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp.Data)
	case "list":
		fs := flag.NewFlagSet("anime list", flag.ExitOnError)
		q := fs.String("q", "", "search in cached entries")
		genre := fs.String("genre", "", "genre name")
		minScore := fs.String("min-score", "", "minimum score")
		status := fs.String("status", "", "airing status")
		typ := fs.String("type", "", "TV, Movie, OVA ...")
		sortKey := fs.String("sort", "", "popularity|rating|title|year")
		limit := fs.Int("limit", 24, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		params := url.Values{"limit": {strconv.Itoa(*limit)}, "offset": {strconv.Itoa(*offset)}}
		setIf(params, "q", *q)
		setIf(params, "genre", *genre)
		setIf(params, "minScore", *minScore)
		setIf(params, "status", *status)
		setIf(params, "type", *typ)
		setIf(params, "sort", *sortKey)
		c.printList(ctx, "/api/anime", params)
	case "ranking":
		fs := flag.NewFlagSet("anime ranking", flag.ExitOnError)
		limit := fs.Int("limit", 24, "page size")
		_ = fs.Parse(args)
		c.printList(ctx, "/api/anime/ranking", url.Values{"limit": {strconv.Itoa(*limit)}})
	case "gems":
		c.printList(ctx, "/api/anime/gems", nil)
	default:
		log.Fatal("usage: animeranker anime <popular|search|show|list|ranking|gems>")
	}
}

func (c *cli) handleRate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	animeID := fs.Int("anime", 0, "MAL id of the anime")
	rating := fs.Int("rating", 0, "rating 1-10")
	_ = fs.Parse(args)

	if *animeID <= 0 || !models.ValidRating(*rating) {
		log.Fatal("anime and rating (1-10) are required")
	}

	payload := map[string]int{"animeId": *animeID, "rating": *rating}
	var resp struct {
		Data models.Rating `json:"data"`
	}
	if err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+"/api/ratings", c.optionalToken(), payload, &resp); err != nil {
		log.Fatalf("rate failed: %v", err)
	}
	fmt.Printf("✅ rated %d → %d (%s)\n", resp.Data.AnimeID, resp.Data.Rating, resp.Data.UserID)
}

func (c *cli) handleRatings(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ratings", flag.ExitOnError)
	user := fs.String("user", "", "user id (defaults to the token identity)")
	_ = fs.Parse(args)

	endpoint := c.baseURL + "/api/ratings"
	if *user != "" {
		endpoint += "?" + url.Values{"userId": {*user}}.Encode()
	}
	var resp struct {
		Data map[string]int `json:"data"`
	}
	if err := doJSON(ctx, c.client, http.MethodGet, endpoint, c.optionalToken(), nil, &resp); err != nil {
		log.Fatalf("ratings failed: %v", err)
	}
	printJSON(resp.Data)
}

func (c *cli) handleStats(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	user := fs.String("user", "", "user id (defaults to the token identity)")
	_ = fs.Parse(args)

	endpoint := c.baseURL + "/api/stats"
	if *user != "" {
		endpoint += "?" + url.Values{"userId": {*user}}.Encode()
	}
	var resp struct {
		Data models.UserStats `json:"data"`
	}
	if err := doJSON(ctx, c.client, http.MethodGet, endpoint, c.optionalToken(), nil, &resp); err != nil {
		log.Fatalf("stats failed: %v", err)
	}
	s := resp.Data
	fmt.Printf("rated: %d  average: %.1f  favorites: %d\n", s.TotalRated, s.AverageRating, s.Favorites)
	for i, n := range s.Distribution {
		if n > 0 {
			fmt.Printf("  %2d %s %d\n", i+1, strings.Repeat("█", n), n)
		}
	}
}

// handleToken mints a token locally with the server's configured secret.
// There is no login endpoint.
func (c *cli) handleToken(sub string, args []string) {
	switch sub {
	case "mint":
		fs := flag.NewFlagSet("token mint", flag.ExitOnError)
		user := fs.String("user", "", "user id to embed")
		_ = fs.Parse(args)

		if strings.TrimSpace(*user) == "" {
			log.Fatal("user is required")
		}
		cfg, err := utils.LoadConfig()
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		tokens := auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.JWTDuration,
		}
		tok, exp, err := tokens.Sign(*user)
		if err != nil {
			log.Fatalf("mint failed: %v", err)
		}
		if err := saveToken(c.tokenPath, tok); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Printf("✅ acting as %s until %s\n", *user, exp.UTC().Format(time.RFC3339))
	case "clear":
		if err := clearToken(c.tokenPath); err != nil {
			log.Fatalf("clear failed: %v", err)
		}
		fmt.Println("✅ back to the default user")
	default:
		log.Fatal("usage: animeranker token <mint|clear>")
	}
}

func (c *cli) handleExport(ctx context.Context, sub string, args []string) {
	fs := flag.NewFlagSet("export "+sub, flag.ExitOnError)
	out := fs.String("out", "data/ranking."+sub, "output path")
	limit := fs.Int("limit", 100, "max titles to export")
	_ = fs.Parse(args)

	var write func(string, []models.Anime) error
	switch sub {
	case "csv":
		write = writeCSV
	case "json":
		write = writeJSON
	default:
		log.Fatal("usage: animeranker export <csv|json>")
	}

	items, err := fetchRanking(ctx, c.client, c.baseURL, *limit)
	if err != nil {
		log.Fatalf("export %s failed: %v", sub, err)
	}
	if err := write(*out, items); err != nil {
		log.Fatalf("write %s failed: %v", sub, err)
	}
	log.Printf("✅ exported %d titles to %s", len(items), *out)
}

// handleImport submits every row of a CSV with mal_id and rating columns,
// for example a file written by export with a rating column added.
func (c *cli) handleImport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "data/ratings.csv", "input CSV path")
	_ = fs.Parse(args)

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("open %s: %v", *in, err)
	}
	defer f.Close()

	rows, err := readRatingsCSV(f)
	if err != nil {
		log.Fatalf("read %s: %v", *in, err)
	}

	token := c.optionalToken()
	imported := 0
	for _, row := range rows {
		payload := map[string]int{"animeId": row.AnimeID, "rating": row.Rating}
		if err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+"/api/ratings", token, payload, nil); err != nil {
			log.Printf("skip mal_id %d: %v", row.AnimeID, err)
			continue
		}
		imported++
	}
	log.Printf("✅ imported %d/%d ratings from %s", imported, len(rows), *in)
}

type ratingRow struct {
	AnimeID int
	Rating  int
}

func readRatingsCSV(src io.Reader) ([]ratingRow, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	idCol, ok := header["mal_id"]
	if !ok {
		return nil, errors.New("missing mal_id column")
	}
	ratingCol, ok := header["rating"]
	if !ok {
		return nil, errors.New("missing rating column")
	}

	var rows []ratingRow
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if idCol >= len(rec) || ratingCol >= len(rec) || strings.TrimSpace(rec[ratingCol]) == "" {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad mal_id %q", line, rec[idCol])
		}
		v, err := strconv.Atoi(strings.TrimSpace(rec[ratingCol]))
		if err != nil || !models.ValidRating(v) {
			return nil, fmt.Errorf("line %d: rating must be 1-10, got %q", line, rec[ratingCol])
		}
		rows = append(rows, ratingRow{AnimeID: id, Rating: v})
	}
	return rows, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func (c *cli) printList(ctx context.Context, path string, params url.Values) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp animeListResponse
	if err := doJSON(ctx, c.client, http.MethodGet, endpoint, c.optionalToken(), nil, &resp); err != nil {
		log.Fatalf("request failed: %v", err)
	}
	for _, a := range resp.Data {
		fmt.Println(formatAnime(a))
	}
	if resp.Total > len(resp.Data) {
		fmt.Printf("(%d-%d of %d)\n", resp.Offset+1, resp.Offset+len(resp.Data), resp.Total)
	}
}

func (c *cli) optionalToken() string {
	tok, err := readToken(c.tokenPath)
	if err != nil {
		return ""
	}
	return tok
}

func formatAnime(a models.Anime) string {
	score := "  - "
	if a.Score != nil {
		score = fmt.Sprintf("%4.2f", *a.Score)
	}
	year := ""
	if a.Year != nil {
		year = fmt.Sprintf(" (%d)", *a.Year)
	}
	return fmt.Sprintf("#%-5d mal:%-6d %s  %s%s", a.ID, a.MalID, score, a.Title, year)
}

func fetchRanking(ctx context.Context, client *http.Client, baseURL string, limit int) ([]models.Anime, error) {
	items := make([]models.Anime, 0, limit)
	offset := 0
	for len(items) < limit {
		pageSize := min(limit-len(items), 100)
		endpoint := fmt.Sprintf("%s/api/anime/ranking?limit=%d&offset=%d", baseURL, pageSize, offset)

		var resp animeListResponse
		if err := doJSON(ctx, client, http.MethodGet, endpoint, "", nil, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Data...)
		offset += len(resp.Data)
		if len(resp.Data) == 0 || offset >= resp.Total {
			break
		}
	}
	return items, nil
}

func writeJSON(path string, items []models.Anime) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeCSV(path string, items []models.Anime) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"rank", "mal_id", "title", "english_title", "score", "scored_by", "year", "type", "genres"}); err != nil {
		return err
	}
	for i, a := range items {
		score := ""
		if a.Score != nil {
			score = strconv.FormatFloat(*a.Score, 'f', 2, 64)
		}
		scoredBy := ""
		if a.ScoredBy != nil {
			scoredBy = strconv.Itoa(*a.ScoredBy)
		}
		year := ""
		if a.Year != nil {
			year = strconv.Itoa(*a.Year)
		}
		row := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(a.MalID),
			a.Title,
			a.EnglishTitle,
			score,
			scoredBy,
			year,
			a.Type,
			strings.Join(a.Genres, "|"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, endpoint, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func setIf(v url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		v.Set(key, value)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode output: %v", err)
	}
	fmt.Println(string(data))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.animeranker-token.json"
	}
	return filepath.Join(home, ".animeranker", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var t tokenData
	if err := json.Unmarshal(data, &t); err != nil {
		return "", err
	}
	if t.Token == "" {
		return "", errors.New("empty token")
	}
	return t.Token, nil
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func printUsage() {
	fmt.Println("animeranker [-api URL] [-token PATH] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  anime popular|search|show|list|ranking|gems")
	fmt.Println("  rate -anime ID -rating N")
	fmt.Println("  ratings [-user ID]")
	fmt.Println("  stats [-user ID]")
	fmt.Println("  token mint|clear")
	fmt.Println("  export csv|json")
	fmt.Println("  import -in ratings.csv")
}
