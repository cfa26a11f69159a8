// Command cv is a CLI client for the CareerVault service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kseleznyov/careervault/internal/client/api"
	"github.com/kseleznyov/careervault/internal/client/offline"
	"github.com/kseleznyov/careervault/internal/client/passchange"
	"github.com/kseleznyov/careervault/internal/client/session"
	"github.com/kseleznyov/careervault/internal/client/state"
	"github.com/kseleznyov/careervault/internal/client/vaultstore"
	"github.com/kseleznyov/careervault/internal/client/vaultsync"
	"github.com/kseleznyov/careervault/internal/errs"
	"github.com/kseleznyov/careervault/internal/model"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- config/state paths ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "careervault")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "careervault")
}

func statePath() string { return filepath.Join(cfgDir(), "state.db") }

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// failMessage renders a tagged error as its fixed user message plus the
// code and detail; untagged errors pass through verbatim.
func failMessage(err error) string {
	if code := errs.CodeOf(err); code != errs.CodeUnknown {
		return fmt.Sprintf("%s (%s)\ndetail: %v", errs.UserMessage(err), code, err)
	}
	return err.Error()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, failMessage(err))
	os.Exit(1)
}

// plainExtractor is the CLI's document text extractor: plain-text payloads
// only. The product swaps in an AI-backed extractor behind the same
// interface.
type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, data []byte, mimeType string) (string, error) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("parse mime type %q: %w", mimeType, err)
	}
	if !strings.HasPrefix(mt, "text/") {
		return "", fmt.Errorf("cannot extract text from %s here; use a text file", mt)
	}
	return string(data), nil
}

var _ vaultstore.TextExtractor = plainExtractor{}

// app bundles the wired client core for one invocation.
type app struct {
	api     api.Client
	bolt    *state.Bolt
	manager *session.Manager
	queue   *offline.Queue
}

func newApp(serverURL string) (*app, error) {
	bolt, err := state.Open(statePath())
	if err != nil {
		return nil, err
	}
	cli := api.NewHTTPClient(serverURL, 30*time.Second)
	keys := state.NewKeyFile(state.DefaultKeyPath())
	return &app{
		api:     cli,
		bolt:    bolt,
		manager: session.NewManager(cli, bolt, keys),
		queue:   offline.NewQueue(bolt),
	}, nil
}

func (a *app) close() { _ = a.bolt.Close() }

// restore rebuilds the session or exits with guidance.
func (a *app) restore(ctx context.Context) *session.Session {
	sess, err := a.manager.Restore(ctx)
	if err != nil {
		fail(err)
	}
	return sess
}

func (a *app) store(sess *session.Session) *vaultstore.Store {
	return vaultstore.New(vaultsync.New(a.api), sess, plainExtractor{})
}

// Queued operation types. Only additive mutations are replayable: updates
// and deletes against a vault that may have changed on another device need
// the user to look first.
const (
	opProfileSet = "profile.set"
	opDocAdd     = "document.add"
	opAppAdd     = "application.add"
)

// mutate runs a vault mutation; a connectivity failure records the
// operation durably for the next sync instead of losing it.
func (a *app) mutate(opType string, payload any, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	switch errs.CodeOf(err) {
	case errs.CodeNetworkOffline, errs.CodeNetworkTimeout, errs.CodeNetworkError:
	default:
		return err
	}
	if _, qerr := a.queue.Record(opType, payload); qerr != nil {
		return err
	}
	fmt.Printf("offline: %s queued; run `cv sync` when back online\n", opType)
	return nil
}

// applyQueued replays one recorded operation against the store.
func applyQueued(ctx context.Context, st *vaultstore.Store, op state.QueuedOp) error {
	switch op.Type {
	case opProfileSet:
		var p model.VaultProfile
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return err
		}
		return st.SaveProfile(ctx, p)
	case opDocAdd:
		var in vaultstore.DocumentInput
		if err := json.Unmarshal(op.Payload, &in); err != nil {
			return err
		}
		_, err := st.CreateDocument(ctx, in)
		return err
	case opAppAdd:
		var in vaultstore.ApplicationInput
		if err := json.Unmarshal(op.Payload, &in); err != nil {
			return err
		}
		_, err := st.CreateApplication(ctx, in)
		return err
	default:
		return fmt.Errorf("unknown queued operation %q", op.Type)
	}
}

// replay drains the offline queue in FIFO order. With wait set it blocks on
// the connectivity monitor's offline-to-online transition; otherwise one
// failed probe aborts. A drain failure leaves the failed entry and
// everything behind it queued.
func (a *app) replay(ctx context.Context, sess *session.Session, wait bool, interval time.Duration) error {
	mon := offline.NewMonitor(a.api.Ping, interval)
	if wait {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		online := mon.Subscribe()
		go mon.Run(runCtx)
	waiting:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case up := <-online:
				if up {
					break waiting
				}
			}
		}
	} else {
		if err := a.api.Ping(ctx); err != nil {
			return err
		}
		mon.SetOnline(true)
	}

	st := a.store(sess)
	return a.queue.Drain(ctx, func(ctx context.Context, op state.QueuedOp) error {
		return applyQueued(ctx, st, op)
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, `cv CLI
Usage:
  cv -server URL <cmd> [args]

Commands:
  version
  status                                      (server reachability)
  register        -e <email> -p <password>
  login           -e <email> -p <password>    (saves session)
  logout
  whoami
  profile
  profile-set     -name .. -email .. [-phone ..] [-location ..] [-summary ..] [-skills a,b]
  cv-upload       -file <path> -name <label> [-mime type]
  cv-list
  cv-activate     -id <uuid>
  doc-add         -file <path> -name <label> [-type cv|other] [-mime type]
  doc-list
  doc-rm          -id <uuid>
  app-add         -company .. -role .. [-status ..] [-url ..] [-notes ..]
  app-list
  app-status      -id <uuid> -status saved|applied|interviewing|offer|rejected
  app-rm          -id <uuid>
  change-password -old <pw> -new <pw>
  strength        -p <password>
  export          [-out <path>]
  import          -file <path>
  stats
  clear                                       (empties the vault)
  sync            [-wait] [-interval 5s]      (replay queued offline changes)
  queue
  queue-clear
`)
	os.Exit(2)
}

// main dispatches subcommands over the wired client core.
func main() {
	server := flag.String("server", "https://localhost:8443", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if cmd == "version" {
		fmt.Printf("cv %s (%s)\n", version, buildDate)
		return
	}

	a, err := newApp(*server)
	if err != nil {
		fail(err)
	}
	defer a.close()

	switch cmd {

	case "status":
		if err := a.api.Ping(ctx); err != nil {
			fail(err)
		}
		fmt.Println("online")

	case "register", "login":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		email := fs.String("e", "", "email")
		pw := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *pw == "" {
			fmt.Fprintln(os.Stderr, "need -e and -p")
			os.Exit(1)
		}
		var sess *session.Session
		if cmd == "register" {
			sess, err = a.manager.Register(ctx, *email, *pw)
		} else {
			sess, err = a.manager.Login(ctx, *email, *pw)
		}
		if err != nil {
			fail(err)
		}
		defer sess.Close()
		fmt.Println(sess.UserID)

	case "logout":
		sess, err := a.manager.Restore(ctx)
		if err != nil {
			// Clear whatever is left even if the token no longer validates.
			sess = nil
		}
		if err := a.manager.Logout(ctx, sess); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		sess := a.restore(ctx)
		defer sess.Close()
		fmt.Printf("%s (%s)\n", sess.Email, sess.UserID)

	case "profile":
		sess := a.restore(ctx)
		defer sess.Close()
		p, err := a.store(sess).Profile(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(p)

	case "profile-set":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("name", "", "full name")
		email := fs.String("email", "", "contact email")
		phone := fs.String("phone", "", "phone")
		location := fs.String("location", "", "location")
		summary := fs.String("summary", "", "summary")
		skills := fs.String("skills", "", "comma-separated skills")
		_ = fs.Parse(args)
		sess := a.restore(ctx)
		defer sess.Close()
		p := model.VaultProfile{
			Name:     *name,
			Email:    *email,
			Phone:    *phone,
			Location: *location,
			Summary:  *summary,
		}
		if *skills != "" {
			p.Skills = strings.Split(*skills, ",")
		}
		err := a.mutate(opProfileSet, p, func() error {
			return a.store(sess).SaveProfile(ctx, p)
		})
		if err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "cv-upload":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "path (or - for stdin)")
		name := fs.String("name", "", "document label")
		mimeType := fs.String("mime", "text/plain", "mime type")
		_ = fs.Parse(args)
		if *file == "" || *name == "" {
			fmt.Fprintln(os.Stderr, "need -file and -name")
			os.Exit(1)
		}
		data, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		doc, err := a.store(sess).UploadCV(ctx, *name, data, *mimeType)
		if err != nil {
			fail(err)
		}
		fmt.Println(doc.ID)

	case "cv-list":
		sess := a.restore(ctx)
		defer sess.Close()
		cvs, err := a.store(sess).StoredCVs(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(cvs)

	case "cv-activate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "document id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		if err := a.store(sess).SetActiveCV(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "doc-add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "path (or - for stdin)")
		name := fs.String("name", "", "document label")
		typ := fs.String("type", string(model.DocumentOther), "cv|other")
		mimeType := fs.String("mime", "text/plain", "mime type")
		_ = fs.Parse(args)
		if *file == "" || *name == "" {
			fmt.Fprintln(os.Stderr, "need -file and -name")
			os.Exit(1)
		}
		data, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		in := vaultstore.DocumentInput{
			Type:     model.DocumentType(*typ),
			Name:     *name,
			Data:     data,
			MimeType: *mimeType,
		}
		err = a.mutate(opDocAdd, in, func() error {
			doc, err := a.store(sess).CreateDocument(ctx, in)
			if err != nil {
				return err
			}
			fmt.Println(doc.ID)
			return nil
		})
		if err != nil {
			fail(err)
		}

	case "doc-list":
		sess := a.restore(ctx)
		defer sess.Close()
		docs, err := a.store(sess).Documents(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(docs)

	case "doc-rm":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "document id")
		_ = fs.Parse(args)
		sess := a.restore(ctx)
		defer sess.Close()
		if err := a.store(sess).DeleteDocument(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "app-add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		company := fs.String("company", "", "company")
		role := fs.String("role", "", "role")
		status := fs.String("status", string(model.StatusSaved), "pipeline status")
		url := fs.String("url", "", "job posting url")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args)
		if *company == "" || *role == "" {
			fmt.Fprintln(os.Stderr, "need -company and -role")
			os.Exit(1)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		in := vaultstore.ApplicationInput{
			Company: *company,
			Role:    *role,
			Status:  model.ApplicationStatus(*status),
			JobURL:  *url,
			Notes:   *notes,
		}
		err = a.mutate(opAppAdd, in, func() error {
			created, err := a.store(sess).CreateApplication(ctx, in)
			if err != nil {
				return err
			}
			fmt.Println(created.ID)
			return nil
		})
		if err != nil {
			fail(err)
		}

	case "app-list":
		sess := a.restore(ctx)
		defer sess.Close()
		apps, err := a.store(sess).Applications(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(apps)

	case "app-status":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "application id")
		status := fs.String("status", "", "new status")
		_ = fs.Parse(args)
		if *id == "" || *status == "" {
			fmt.Fprintln(os.Stderr, "need -id and -status")
			os.Exit(1)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		st := model.ApplicationStatus(*status)
		updated, err := a.store(sess).UpdateApplication(ctx, *id, vaultstore.ApplicationUpdate{Status: &st})
		if err != nil {
			fail(err)
		}
		printJSON(updated)

	case "app-rm":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "application id")
		_ = fs.Parse(args)
		sess := a.restore(ctx)
		defer sess.Close()
		if err := a.store(sess).DeleteApplication(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "change-password":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		oldPw := fs.String("old", "", "current password")
		newPw := fs.String("new", "", "new password")
		_ = fs.Parse(args)
		if *oldPw == "" || *newPw == "" {
			fmt.Fprintln(os.Stderr, "need -old and -new")
			os.Exit(1)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		if err := passchange.New(a.api).Change(ctx, sess, *oldPw, *newPw); err != nil {
			fail(err)
		}
		// Old token and key export are stale after rotation.
		if err := a.manager.Logout(ctx, sess); err != nil {
			fail(err)
		}
		fmt.Println("password changed; log in again")

	case "strength":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pw := fs.String("p", "", "password")
		_ = fs.Parse(args)
		st := passchange.CheckStrength(*pw)
		printJSON(struct {
			Score    int      `json:"score"`
			Feedback []string `json:"feedback"`
		}{st.Score, st.Feedback})

	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output path (default stdout)")
		_ = fs.Parse(args)
		sess := a.restore(ctx)
		defer sess.Close()
		data, err := a.store(sess).Export(ctx)
		if err != nil {
			fail(err)
		}
		if *out == "" {
			fmt.Println(string(data))
			break
		}
		if err := os.WriteFile(*out, data, 0o600); err != nil {
			fail(err)
		}

	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "export file (or - for stdin)")
		_ = fs.Parse(args)
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}
		data, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		sess := a.restore(ctx)
		defer sess.Close()
		if err := a.store(sess).Import(ctx, data); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "stats":
		sess := a.restore(ctx)
		defer sess.Close()
		st, err := a.store(sess).Stats(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(st)

	case "clear":
		sess := a.restore(ctx)
		defer sess.Close()
		if err := a.store(sess).ClearAll(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		wait := fs.Bool("wait", false, "block until the server is reachable")
		interval := fs.Duration("interval", 5*time.Second, "probe interval while waiting")
		_ = fs.Parse(args)
		sess := a.restore(ctx)
		defer sess.Close()
		if err := a.replay(ctx, sess, *wait, *interval); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "queue":
		ops, err := a.queue.Pending()
		if err != nil {
			fail(err)
		}
		printJSON(ops)

	case "queue-clear":
		if err := a.queue.Clear(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}
