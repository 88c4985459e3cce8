// Command savorctl is a terminal client for the Savor platform API:
// browse and search foods and restaurants with load-more paging, and run
// admin CRUD over foods, restaurants and users.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/savorhq/savor-go/internal/changeset"
	"github.com/savorhq/savor-go/internal/client"
	"github.com/savorhq/savor-go/internal/config"
	"github.com/savorhq/savor-go/internal/feed"
	"github.com/savorhq/savor-go/internal/session"
)

const version = "0.1.0"

var (
	configPath  = flag.String("config", "", "Path to configuration file (JSON)")
	showVersion = flag.Bool("version", false, "Show version information")
	debug       = flag.Bool("debug", false, "Enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: savorctl [flags] <command> [args]

Commands:
  login <email>                      authenticate and store the session
  logout                             drop the stored session
  list <resource> [flags]            list foods, restaurants or users
  get <resource> <id>                show one entity
  create <resource> -data <json>     create an entity (admin)
  update <resource> <id> -data <json>  update changed fields only (admin)
  delete <resource> <id>             delete an entity (admin)
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("savorctl version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	sess, err := session.LoadFile(cfg.SessionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load session: %v\n", err)
		os.Exit(1)
	}
	sess.OnUnauthorized(func() {
		fmt.Fprintln(os.Stderr, "Session expired or unauthorized - run `savorctl login` again.")
		if err := session.DeleteFile(cfg.SessionPath); err != nil {
			log.Warn().Err(err).Msg("failed to remove session file")
		}
	})

	api := client.New(cfg.APIBaseURL, sess)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch args[0] {
	case "login":
		err = runLogin(ctx, api, sess, cfg, args[1:])
	case "logout":
		err = session.DeleteFile(cfg.SessionPath)
		if err == nil {
			fmt.Println("Logged out.")
		}
	case "list":
		err = runList(ctx, api, cfg, args[1:])
	case "get":
		err = runGet(ctx, api, args[1:])
	case "create":
		err = runCreate(ctx, api, args[1:])
	case "update":
		err = runUpdate(ctx, api, args[1:])
	case "delete":
		err = runDelete(ctx, api, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}
	if *debug || cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func resourceClient(api *client.API, name string) (*client.ResourceClient, error) {
	switch name {
	case "foods":
		return api.Foods, nil
	case "restaurants":
		return api.Restaurants, nil
	case "users":
		return api.Users, nil
	}
	return nil, fmt.Errorf("unknown resource %q (want foods, restaurants or users)", name)
}

func runLogin(ctx context.Context, api *client.API, sess *session.Session, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: savorctl login <email>")
	}
	email := args[0]

	fmt.Fprint(os.Stderr, "Password: ")
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	result, err := api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := sess.SetToken(result.Token, result.User); err != nil {
		return err
	}
	if err := session.SaveFile(sess, cfg.SessionPath); err != nil {
		return err
	}

	name, _ := result.User["name"].(string)
	fmt.Printf("Logged in as %s (%s)\n", name, email)
	return nil
}

func runList(ctx context.Context, api *client.API, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	search := fs.String("search", "", "Search by name")
	status := fs.String("status", "", "Filter by status")
	category := fs.String("category", "", "Filter by category")
	pageSize := fs.Int("page-size", cfg.PageSize, "Items per page")
	pages := fs.Int("pages", 1, "Number of pages to load (0 = all)")
	if len(args) < 1 {
		return fmt.Errorf("usage: savorctl list <resource> [flags]")
	}
	resource := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if _, err := resourceClient(api, resource); err != nil {
		return err
	}

	acc := feed.NewAccumulator(api.Fetcher, resource, *pageSize)
	acc.Reset(map[string]string{
		"search":   *search,
		"status":   *status,
		"category": *category,
	})
	if err := acc.Load(ctx); err != nil {
		return err
	}
	for acc.HasMore() && (*pages == 0 || acc.Snapshot().CurrentPage < *pages) {
		if err := acc.LoadMore(ctx); err != nil {
			return err
		}
	}

	snap := acc.Snapshot()
	for _, item := range snap.Items {
		printItem(resource, item)
	}
	fmt.Printf("\n%d of %d items (page %d/%d)",
		len(snap.Items), snap.Pagination.Total, snap.CurrentPage, snap.Pagination.TotalPages)
	if snap.HasMore {
		fmt.Print(" - more available, rerun with -pages 0")
	}
	fmt.Println()
	return nil
}

func printItem(resource string, item map[string]any) {
	switch resource {
	case "foods":
		if f, err := client.As[client.Food](item); err == nil {
			fmt.Printf("%-8s %-24s %7.2f  %-12s %s\n", f.ID, f.Name, f.Price, f.Category, f.Status)
			return
		}
	case "restaurants":
		if r, err := client.As[client.Restaurant](item); err == nil {
			fmt.Printf("%-8s %-24s %.1f  %-12s %s\n", r.ID, r.Name, r.Rating, r.Category, r.Status)
			return
		}
	case "users":
		if u, err := client.As[client.User](item); err == nil {
			fmt.Printf("%-8s %-24s %-28s %s\n", u.ID, u.Name, u.Email, u.Role)
			return
		}
	}
	b, _ := json.Marshal(item)
	fmt.Println(string(b))
}

func runGet(ctx context.Context, api *client.API, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: savorctl get <resource> <id>")
	}
	rc, err := resourceClient(api, args[0])
	if err != nil {
		return err
	}
	item, err := rc.Get(ctx, args[1])
	if err != nil {
		return err
	}
	return printJSON(item)
}

func runCreate(ctx context.Context, api *client.API, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	data := fs.String("data", "", "Entity fields as a JSON object")
	if len(args) < 1 {
		return fmt.Errorf("usage: savorctl create <resource> -data <json>")
	}
	rc, err := resourceClient(api, args[0])
	if err != nil {
		return err
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(*data), &payload); err != nil {
		return fmt.Errorf("invalid -data JSON: %w", err)
	}

	created, err := rc.Create(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Println("Created:")
	return printJSON(created)
}

// runUpdate fetches the entity as the edit snapshot, overlays the submitted
// fields, and sends only the fields that actually changed. An empty diff is
// reported as "no changes", not submitted.
func runUpdate(ctx context.Context, api *client.API, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	data := fs.String("data", "", "Changed fields as a JSON object")
	if len(args) < 2 {
		return fmt.Errorf("usage: savorctl update <resource> <id> -data <json>")
	}
	rc, err := resourceClient(api, args[0])
	if err != nil {
		return err
	}
	id := args[1]
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	var edits map[string]any
	if err := json.Unmarshal([]byte(*data), &edits); err != nil {
		return fmt.Errorf("invalid -data JSON: %w", err)
	}

	original, err := rc.Get(ctx, id)
	if err != nil {
		return err
	}
	current := make(map[string]any, len(original))
	for k, v := range original {
		current[k] = v
	}
	for k, v := range edits {
		current[k] = v
	}

	changes := changeset.Diff(current, original)
	updated, err := rc.Update(ctx, id, changes)
	if errors.Is(err, client.ErrNoChanges) {
		fmt.Println("No changes to apply.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Updated fields: %v\n", changes.Fields())
	return printJSON(updated)
}

func runDelete(ctx context.Context, api *client.API, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: savorctl delete <resource> <id>")
	}
	rc, err := resourceClient(api, args[0])
	if err != nil {
		return err
	}
	if err := rc.Delete(ctx, args[1]); err != nil {
		return err
	}
	fmt.Println("Deleted.")
	return nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
