// Command chat is an interactive terminal client for a venturechat
// gateway. It exercises the whole client stack: REST calls, the unread
// aggregator, the presence poller and the realtime stream.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/venturesroom/venturechat/client/api"
	"github.com/venturesroom/venturechat/client/presence"
	"github.com/venturesroom/venturechat/client/session"
	sessionsignal "github.com/venturesroom/venturechat/client/signal"
	"github.com/venturesroom/venturechat/client/stream"
	"github.com/venturesroom/venturechat/client/unread"
	"github.com/venturesroom/venturechat/internal/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "gateway base URL")
	username := flag.String("user", "", "username")
	password := flag.String("password", "", "password")
	displayName := flag.String("display-name", "", "display name (register a new account when set)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *username == "" || *password == "" {
		return errors.New("both -user and -password are required")
	}

	logger := log.New(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	login := api.New(*addr, nil, logger)
	var token string
	var err error
	if *displayName != "" {
		token, err = login.Register(ctx, *username, *displayName, *password)
	} else {
		token, err = login.Login(ctx, *username, *password)
	}
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	self := *displayName
	if self == "" {
		self = *username
	}

	client := api.New(*addr, func() string { return token }, logger)
	bus := sessionsignal.New()
	unreadAgg := unread.New(client, bus, logger, unread.WithAuthExpired(func() {
		fmt.Println("! session expired, please restart and log in again")
		stop()
	}))
	who := presence.New(client, logger)
	mgr := session.New(client, unreadAgg, self, logger)
	mgr.OnChange(func() { render(mgr, who) })

	listener := stream.New(*addr, func() string { return token }, mgr, bus, logger)

	go unreadAgg.Run(ctx)
	go who.Run(ctx)
	go func() {
		if err := listener.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "! stream disconnected: %v\n", err)
		}
	}()

	fmt.Printf("Connected to %s as %s\n", *addr, self)
	fmt.Println("Commands: /partners /open <name> /unread /who /image <path>  Ctrl+C to exit.")

	return repl(ctx, client, mgr, unreadAgg, who)
}

func repl(ctx context.Context, client *api.Client, mgr *session.Manager, unreadAgg *unread.Aggregator, who *presence.Poller) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/partners":
			partners, err := client.Partners(ctx)
			if err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			for _, p := range partners {
				fmt.Printf("  %s [%s]\n", p.DisplayName, who.Status(p.DisplayName))
			}
		case strings.HasPrefix(line, "/open "):
			partner := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			if err := mgr.SelectPartner(ctx, partner); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case line == "/unread":
			for _, entry := range unreadAgg.Snapshot() {
				fmt.Printf("  %s: %d\n", entry.PartnerName, entry.Count)
			}
			fmt.Printf("  total: %d\n", unreadAgg.Total())
		case line == "/who":
			for name, status := range who.Snapshot() {
				fmt.Printf("  %s: %s\n", name, status)
			}
		case strings.HasPrefix(line, "/image "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
			if err := sendImage(ctx, mgr, path); err != nil {
				fmt.Printf("! %v\n", err)
			}
		default:
			if err := mgr.Send(ctx, line, ""); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
	return scanner.Err()
}

func sendImage(ctx context.Context, mgr *session.Manager, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	return mgr.SendImage(ctx, filepath.Base(path), info.Size(), file)
}

func render(mgr *session.Manager, who *presence.Poller) {
	view := mgr.View()
	if view.Partner == "" {
		return
	}
	switch view.Phase {
	case session.PhaseLoading:
		fmt.Printf("-- loading conversation with %s --\n", view.Partner)
	case session.PhaseError:
		fmt.Printf("! %v\n", view.FetchErr)
	case session.PhaseReady:
		fmt.Printf("-- %s [%s] --\n", view.Partner, who.Status(view.Partner))
		for _, group := range session.GroupMessages(view.Messages) {
			first := group[0]
			fmt.Printf("%s (%s)\n", first.SenderName, first.Timestamp.Format("15:04"))
			for _, msg := range group {
				marker := ""
				if msg.IsOptimistic {
					marker = " (sending)"
				}
				body := msg.Content
				if body == "" && msg.ImageURL != "" {
					body = "[image] " + msg.ImageURL
				}
				fmt.Printf("  %s%s\n", body, marker)
			}
		}
	}
	if view.SendErr != nil {
		fmt.Printf("! %v\n", view.SendErr)
	}
	if view.UploadErr != nil {
		fmt.Printf("! %v\n", view.UploadErr)
	}
}
