// Command civic is a CLI client for the complaint portal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmunicipal/civicportal/internal/client"
	"github.com/openmunicipal/civicportal/internal/workflow"
)

// ---- config/session store ----

type sessionFile struct {
	SessionID   string    `json:"session_id"`
	MaskedEmail string    `json:"masked_email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "civicportal")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "civicportal")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(s *workflow.Session) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(sessionPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(sessionFile{SessionID: s.ID, MaskedEmail: s.MaskedEmail, ExpiresAt: s.ExpiresAt})
}

func loadSession() (*workflow.Session, error) {
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return nil, errors.New("no pending verification (run submit first)")
	}
	var sf sessionFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, err
	}
	if time.Now().After(sf.ExpiresAt) {
		return nil, errors.New("verification session expired (run submit again)")
	}
	return &workflow.Session{ID: sf.SessionID, MaskedEmail: sf.MaskedEmail, ExpiresAt: sf.ExpiresAt}, nil
}

func clearSession() { _ = os.Remove(sessionPath()) }

// ---- workflow wiring ----

func openForm() (*workflow.Form, error) {
	store, err := workflow.NewFileDraftStore(cfgDir())
	if err != nil {
		return nil, err
	}
	form := workflow.NewForm(store, "draft", nil, nil)
	form.Resume()
	return form, nil
}

func tokenStore() (*workflow.FileTokenStore, error) {
	return workflow.NewFileTokenStore(filepath.Join(cfgDir(), "token"))
}

// attachFiles re-adds picked files to the form; binary handles never
// survive between invocations, so every attachment travels as -file flags
// on the submitting command.
func attachFiles(form *workflow.Form, paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		mimeType := mime.TypeByExtension(filepath.Ext(p))
		path := p
		_, err = form.AddAttachment(filepath.Base(p), mimeType, info.Size(), func() (io.ReadCloser, error) {
			return os.Open(path)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// fileFlags collects repeated -file flags.
type fileFlags []string

func (f *fileFlags) String() string     { return strings.Join(*f, ",") }
func (f *fileFlags) Set(v string) error { *f = append(*f, v); return nil }

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `civic CLI
Usage:
  civic -addr URL <cmd> [args]

Commands:
  version
  captcha                                         (prints challenge id + svg)
  wards                                           (ward/sub-zone reference list)
  submit   -name N -email E -phone P -type T -desc D -ward W -area A
           [-subzone Z] [-landmark L] [-address ADDR] [-priority PR]
           [-captcha-id ID -captcha-answer ANS] [-file img.jpg ...]
                                                  (starts OTP verification)
  verify   -code 123456 [-file img.jpg ...]       (activates the complaint)
  resend                                          (fresh code, same session)
  track    -tn CSC123456
  login    -email E -password PW                  (saves token)
  mine                                            (own complaints)
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the portal API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "portal base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	api := client.New(*addr)

	switch cmd {

	case "version":
		fmt.Printf("civic %s (%s)\n", version, buildDate)

	case "captcha":
		id, svg, err := api.Captcha(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(map[string]string{"captchaId": id, "svg": svg})

	case "wards":
		wards, err := api.Wards(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(wards)

	case "submit":
		fs := flag.NewFlagSet("submit", flag.ExitOnError)
		name := fs.String("name", "", "full name")
		email := fs.String("email", "", "email")
		phone := fs.String("phone", "", "phone number")
		typ := fs.String("type", "", "complaint type, e.g. WATER_SUPPLY")
		desc := fs.String("desc", "", "description (min 10 chars)")
		ward := fs.String("ward", "", "ward id")
		subzone := fs.String("subzone", "", "sub-zone id")
		area := fs.String("area", "", "area")
		landmark := fs.String("landmark", "", "landmark")
		address := fs.String("address", "", "address")
		priority := fs.String("priority", "", "LOW|MEDIUM|HIGH|CRITICAL")
		capID := fs.String("captcha-id", "", "captcha id")
		capAns := fs.String("captcha-answer", "", "captcha answer")
		var files fileFlags
		fs.Var(&files, "file", "attachment (repeatable, jpeg/png, max 5)")
		_ = fs.Parse(flag.Args()[1:])

		form, err := openForm()
		if err != nil {
			fail(err)
		}
		// ward before sub-zone: changing the ward clears the sub-zone
		fields := []struct{ name, val string }{
			{"fullName", *name}, {"email", *email}, {"phoneNumber", *phone},
			{"type", *typ}, {"description", *desc}, {"wardId", *ward},
			{"subZoneId", *subzone}, {"area", *area}, {"landmark", *landmark},
			{"address", *address}, {"priority", *priority},
		}
		for _, f := range fields {
			if f.val != "" {
				form.SetField(f.name, f.val)
			}
		}
		if err := attachFiles(form, files); err != nil {
			fail(err)
		}

		tokens, err := tokenStore()
		if err != nil {
			fail(err)
		}
		coord := workflow.NewCoordinator(api, form, tokens, nil)
		sess, err := coord.Begin(ctx, *capID, *capAns)
		if err != nil {
			fail(err)
		}
		if err := saveSession(sess); err != nil {
			fail(err)
		}
		fmt.Printf("code sent to %s; verify with: civic verify -code XXXXXX\n", sess.MaskedEmail)
		fmt.Printf("session expires at %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ExitOnError)
		code := fs.String("code", "", "6-digit code from the email")
		var files fileFlags
		fs.Var(&files, "file", "attachment (repeatable, jpeg/png, max 5)")
		_ = fs.Parse(flag.Args()[1:])
		if *code == "" {
			fail(errors.New("need -code"))
		}

		sess, err := loadSession()
		if err != nil {
			fail(err)
		}
		form, err := openForm()
		if err != nil {
			fail(err)
		}
		if err := attachFiles(form, files); err != nil {
			fail(err)
		}
		tokens, err := tokenStore()
		if err != nil {
			fail(err)
		}
		coord := workflow.NewCoordinator(api, form, tokens, nil)
		coord.Restore(sess)

		out, err := coord.Verify(ctx, *code)
		if err != nil {
			fail(err)
		}
		clearSession()
		fmt.Printf("complaint registered: %s\n", out.TrackingNumber)
		if out.IsNewUser {
			fmt.Println("a citizen account was created for your email")
		}

	case "resend":
		sess, err := loadSession()
		if err != nil {
			fail(err)
		}
		form, err := openForm()
		if err != nil {
			fail(err)
		}
		coord := workflow.NewCoordinator(api, form, nil, nil)
		coord.Restore(sess)

		fresh, err := coord.Resend(ctx)
		if err != nil {
			fail(err)
		}
		if err := saveSession(fresh); err != nil {
			fail(err)
		}
		fmt.Printf("new code sent to %s\n", fresh.MaskedEmail)

	case "track":
		fs := flag.NewFlagSet("track", flag.ExitOnError)
		tn := fs.String("tn", "", "tracking number, e.g. CSC482913")
		_ = fs.Parse(flag.Args()[1:])
		if *tn == "" {
			fail(errors.New("need -tn"))
		}
		info, err := api.Track(ctx, *tn)
		if err != nil {
			fail(err)
		}
		printJSON(info)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *email == "" || *password == "" {
			fail(errors.New("need -email and -password"))
		}
		res, err := api.Login(ctx, *email, *password)
		if err != nil {
			fail(err)
		}
		tokens, err := tokenStore()
		if err != nil {
			fail(err)
		}
		if err := tokens.SaveToken(res.AccessToken); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "mine":
		tokens, err := tokenStore()
		if err != nil {
			fail(err)
		}
		token, err := tokens.LoadToken()
		if err != nil {
			fail(errors.New("not logged in (run login first)"))
		}
		mine, err := api.MyComplaints(ctx, token)
		if err != nil {
			fail(err)
		}
		printJSON(mine)

	default:
		usage()
	}
}
