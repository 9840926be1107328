// cellgatectl is a terminal client for a running cellgate server. It
// keeps its gateway session in a local store, the same way the web
// dashboard does in the browser.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cellgate/cellgate/internal/session"
	"github.com/cellgate/cellgate/internal/sync"
	"github.com/cellgate/cellgate/internal/version"
	"github.com/cellgate/cellgate/pkg/models"
)

const usage = `Usage: cellgatectl [flags] <command>

Commands:
  login     authenticate against the gateway and store the session
  logout    drop the stored session
  status    show gateway health and session state
  watch     poll a resource and print each update
  wifi      show or edit the WiFi configuration
  reboot    restart the gateway
  version   print version information

Flags:
`

type app struct {
	client *sync.Client
	store  *session.Store
	logger *zap.Logger
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "cellgate server URL")
	sessionPath := flag.String("session", defaultSessionPath(), "path to the session store")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(filepath.Dir(*sessionPath), 0o700); err != nil {
		fatalf("create session directory: %v", err)
	}
	store, err := session.Open(*sessionPath)
	if err != nil {
		fatalf("open session store: %v", err)
	}
	defer store.Close()

	a := &app{
		client: sync.NewClient(*serverURL, store, nil, logger),
		store:  store,
		logger: logger,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "login":
		err = a.login(ctx, args)
	case "logout":
		err = a.logout(ctx)
	case "status":
		err = a.status(ctx)
	case "watch":
		err = a.watch(ctx, args)
	case "wifi":
		err = a.wifi(ctx, args)
	case "reboot":
		err = a.reboot(ctx)
	case "version":
		fmt.Println(version.Info())
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cellgate-session.db"
	}
	return filepath.Join(dir, "cellgate", "session.db")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "cellgatectl: "+format+"\n", args...)
	os.Exit(1)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("user", "", "gateway admin username")
	password := fs.String("password", "", "gateway admin password")
	routerIP := fs.String("router", "", "gateway address (default from the server)")
	remember := fs.Bool("remember", false, "remember the username for the next login")
	fs.Parse(args)

	if *username == "" {
		if remembered, err := a.store.RememberedUsername(ctx); err == nil && remembered != "" {
			*username = remembered
		}
	}
	if *username == "" || *password == "" {
		return errors.New("login requires -user and -password")
	}

	resp, err := a.client.Login(ctx, *username, *password, *routerIP, *remember)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in to %s as %s\n", resp.RouterIP, resp.Username)
	if resp.Expiration > 0 {
		fmt.Printf("Session expires %s\n", time.Unix(resp.Expiration, 0).Format(time.RFC1123))
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *app) status(ctx context.Context) error {
	health, err := a.client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Gateway %s: %s", health.IP, health.Status)
	if health.Message != "" {
		fmt.Printf(" (%s)", health.Message)
	}
	fmt.Println()

	creds, err := a.store.Credentials(ctx)
	if err != nil {
		return err
	}
	switch {
	case creds.Token == "":
		fmt.Println("Session: not logged in")
	case creds.Expired(time.Now()):
		fmt.Printf("Session: expired (was %s)\n", creds.Username)
	default:
		fmt.Printf("Session: %s @ %s\n", creds.Username, creds.GatewayIP)
	}
	return nil
}

func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	name := fs.String("resource", "signal", "resource to watch (signal, gateway, cell, clients, health, ...)")
	fs.Parse(args)

	res, ok := sync.Lookup(*name)
	if !ok {
		return fmt.Errorf("unknown resource %q", *name)
	}

	mgr := sync.NewManager(a.client, a.logger, sync.WithAuthExpiredFunc(func() {
		fmt.Fprintln(os.Stderr, "session expired; run cellgatectl login")
	}))
	defer mgr.Close()

	fmt.Printf("Watching %s every %s (Ctrl-C to stop)\n", res.Name, res.Interval)
	for update := range mgr.Subscribe(ctx, res) {
		stamp := update.At.Format("15:04:05")
		switch {
		case errors.Is(update.Err, sync.ErrLoginRequired):
			fmt.Printf("[%s] %s needs a session; run cellgatectl login\n", stamp, res.Name)
		case update.Err != nil && update.Stale:
			fmt.Printf("[%s] refresh failed (%v), showing last good data:\n", stamp, update.Err)
			printJSON(update.Data)
		case update.Err != nil:
			fmt.Printf("[%s] error: %v\n", stamp, update.Err)
		default:
			fmt.Printf("[%s]\n", stamp)
			printJSON(update.Data)
		}
	}
	return nil
}

func (a *app) wifi(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("wifi requires a subcommand: show or set")
	}

	draft := sync.NewDraft(a.client, nil)
	if err := draft.Load(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "show":
		cfg := draft.Config()
		printJSONValue(cfg)
		return nil
	case "set":
		return a.wifiSet(ctx, draft, args[1:])
	default:
		return fmt.Errorf("unknown wifi subcommand %q", args[0])
	}
}

func (a *app) wifiSet(ctx context.Context, draft *sync.Draft, args []string) error {
	fs := flag.NewFlagSet("wifi set", flag.ExitOnError)
	ssid := fs.String("ssid", "", "SSID to edit (default: the first one)")
	rename := fs.String("rename", "", "new SSID name")
	password := fs.String("password", "", "new WPA key")
	disable5 := fs.Bool("disable-5ghz", false, "turn the 5GHz radio off")
	confirm := fs.Bool("confirm", false, "confirm changes that disconnect clients")
	fs.Parse(args)

	err := draft.Update(func(cfg *models.ApConfig) {
		idx := 0
		for i, s := range cfg.SSIDs {
			if *ssid != "" && s.SSIDName == *ssid {
				idx = i
				break
			}
		}
		if len(cfg.SSIDs) == 0 {
			return
		}
		if *rename != "" {
			cfg.SSIDs[idx].SSIDName = *rename
		}
		if *password != "" {
			cfg.SSIDs[idx].WPAKey = *password
		}
		if *disable5 && cfg.Band50 != nil {
			cfg.Band50.IsRadioEnabled = false
		}
	})
	if err != nil {
		return err
	}

	if !draft.Dirty() {
		fmt.Println("Nothing to change")
		return nil
	}

	if err := draft.Save(ctx, *confirm); err != nil {
		if errors.Is(err, sync.ErrConfirmRequired) {
			return errors.New("disabling the 5GHz radio disconnects most clients; re-run with -confirm")
		}
		return err
	}
	fmt.Println("WiFi configuration saved")
	return nil
}

func (a *app) reboot(ctx context.Context) error {
	if err := a.client.Reboot(ctx); err != nil {
		return err
	}
	fmt.Println("Reboot requested; the gateway will be offline for a few minutes")
	return nil
}

func printJSON(raw json.RawMessage) {
	var buf any
	if err := json.Unmarshal(raw, &buf); err != nil {
		fmt.Println(string(raw))
		return
	}
	printJSONValue(buf)
}

func printJSONValue(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(out))
}
