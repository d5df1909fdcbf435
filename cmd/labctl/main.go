// Command labctl drives the booking lifecycle from a terminal: listing,
// creating, approving, rejecting and deleting bookings against the remote
// booking service, plus minting development tokens.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/lab-booking/internal/auth"
	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/clock"
	"github.com/iliyamo/lab-booking/internal/config"
	"github.com/iliyamo/lab-booking/internal/model"
	"github.com/iliyamo/lab-booking/internal/remote"
)

const usage = `usage: labctl [--api URL] [--token TOKEN] [--tz ZONE] [--json] <command> [flags]

commands:
  list     [--user ID] [--lab ID] [--status S] [--date YYYY-MM-DD]
  pending  [--window all|today|this_week]
  create   --lab ID --start TIME --end TIME --purpose TEXT
  approve  ID [--notes TEXT]
  reject   ID --reason TEXT
  delete   ID
  labs
  token    --user ID [--role ROLE] [--ttl 1h] [--secret S]
`

var errUsage = errors.New("invalid usage")

func main() {
	config.LoadDotenv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	api    string
	token  string
	loc    *time.Location
	asJSON bool
	out    io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := pflag.NewFlagSet("labctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)
	api := global.String("api", os.Getenv("BOOKING_API_URL"), "booking service base URL")
	token := global.String("token", os.Getenv("LABCTL_TOKEN"), "bearer token")
	tz := global.String("tz", envOr("APP_TIMEZONE", "UTC"), "time zone for input and output")
	asJSON := global.Bool("json", false, "print JSON instead of a table")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := global.Args()
	if len(rest) == 0 {
		return errUsage
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("invalid --tz %q", *tz)
	}
	c := &cli{api: *api, token: *token, loc: loc, asJSON: *asJSON, out: out}

	name, cmdArgs := rest[0], rest[1:]
	switch name {
	case "token":
		return c.cmdToken(cmdArgs)
	case "list":
		return c.cmdList(ctx, cmdArgs)
	case "pending":
		return c.cmdPending(ctx, cmdArgs)
	case "create":
		return c.cmdCreate(ctx, cmdArgs)
	case "approve":
		return c.cmdApprove(ctx, cmdArgs)
	case "reject":
		return c.cmdReject(ctx, cmdArgs)
	case "delete":
		return c.cmdDelete(ctx, cmdArgs)
	case "labs":
		return c.cmdLabs(ctx, cmdArgs)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, name)
}

func (c *cli) session() (*auth.Session, *remote.Client, error) {
	if c.api == "" {
		return nil, nil, errors.New("--api or BOOKING_API_URL is required")
	}
	if c.token == "" {
		return nil, nil, errors.New("--token or LABCTL_TOKEN is required")
	}
	claims, err := auth.ClaimsFromToken(c.token)
	if err != nil {
		return nil, nil, err
	}
	sess := auth.NewSession(claims.UserID, claims.Role, c.token, nil)
	client, err := remote.New(remote.Options{BaseURL: c.api, Tokens: sess, Location: c.loc})
	if err != nil {
		return nil, nil, err
	}
	return sess, client, nil
}

func (c *cli) manager() (*booking.Manager, error) {
	sess, client, err := c.session()
	if err != nil {
		return nil, err
	}
	return booking.NewManager(client, booking.WithAuth(sess), booking.WithClock(clock.NewSystem(c.loc))), nil
}

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// idArg returns the single positional booking id.
func idArg(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: %s needs exactly one booking id", errUsage, fs.Name())
	}
	return fs.Arg(0), nil
}

func (c *cli) cmdToken(args []string) error {
	fs := newFlags("token")
	user := fs.String("user", "", "user id (sub claim)")
	role := fs.String("role", "student", "role claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *user == "" || *secret == "" {
		return fmt.Errorf("%w: token needs --user and --secret (or JWT_SECRET)", errUsage)
	}
	tok, err := auth.IssueToken(*secret, *user, *role, *ttl)
	if err != nil {
		return err
	}
	if c.asJSON {
		return json.NewEncoder(c.out).Encode(tok)
	}
	_, err = fmt.Fprintln(c.out, tok.Token)
	return err
}

func (c *cli) cmdList(ctx context.Context, args []string) error {
	fs := newFlags("list")
	var f model.Filter
	var status string
	fs.StringVar(&f.UserID, "user", "", "requester id")
	fs.StringVar(&f.LabID, "lab", "", "lab id")
	fs.StringVar(&status, "status", "", "booking status")
	fs.StringVar(&f.Date, "date", "", "day, YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return err
	}
	if status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return err
		}
		f.Status = st
	}
	m, err := c.manager()
	if err != nil {
		return err
	}
	list, err := m.List(ctx, f)
	if err != nil {
		return err
	}
	return c.printBookings(list, m.Now())
}

func (c *cli) cmdPending(ctx context.Context, args []string) error {
	fs := newFlags("pending")
	window := fs.String("window", "all", "all, today or this_week")
	if err := parse(fs, args); err != nil {
		return err
	}
	w, err := booking.ParseWindow(*window)
	if err != nil {
		return err
	}
	m, err := c.manager()
	if err != nil {
		return err
	}
	list, err := m.ListPending(ctx)
	if err != nil {
		return err
	}
	return c.printBookings(booking.FilterByWindow(list, w, m.Now()), m.Now())
}

func (c *cli) cmdCreate(ctx context.Context, args []string) error {
	fs := newFlags("create")
	lab := fs.String("lab", "", "lab id")
	start := fs.String("start", "", "start time")
	end := fs.String("end", "", "end time")
	purpose := fs.String("purpose", "", "purpose of the booking")
	requester := fs.String("requester", "", "requester id (default: token user)")
	if err := parse(fs, args); err != nil {
		return err
	}
	m, err := c.manager()
	if err != nil {
		return err
	}
	in := model.NewBooking{LabID: *lab, RequesterID: *requester, Purpose: *purpose}
	if in.RequesterID == "" {
		claims, _ := auth.ClaimsFromToken(c.token)
		in.RequesterID = claims.UserID
	}
	if in.StartTime, err = c.parseTime("start", *start); err != nil {
		return err
	}
	if in.EndTime, err = c.parseTime("end", *end); err != nil {
		return err
	}
	b, err := m.Create(ctx, in)
	if err != nil {
		return err
	}
	return c.printBookings([]model.Booking{b}, m.Now())
}

func (c *cli) cmdApprove(ctx context.Context, args []string) error {
	fs := newFlags("approve")
	notes := fs.String("notes", "", "note for the requester")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := idArg(fs)
	if err != nil {
		return err
	}
	m, err := c.manager()
	if err != nil {
		return err
	}
	b, err := m.Approve(ctx, id, model.ApproveData{Notes: *notes})
	if err != nil {
		return err
	}
	return c.printBookings([]model.Booking{b}, m.Now())
}

func (c *cli) cmdReject(ctx context.Context, args []string) error {
	fs := newFlags("reject")
	reason := fs.String("reason", "", "why the booking is rejected")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := idArg(fs)
	if err != nil {
		return err
	}
	m, err := c.manager()
	if err != nil {
		return err
	}
	b, err := m.Reject(ctx, id, *reason)
	if err != nil {
		return err
	}
	return c.printBookings([]model.Booking{b}, m.Now())
}

func (c *cli) cmdDelete(ctx context.Context, args []string) error {
	fs := newFlags("delete")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := idArg(fs)
	if err != nil {
		return err
	}
	m, err := c.manager()
	if err != nil {
		return err
	}
	if err := m.Delete(ctx, id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "deleted %s\n", id)
	return err
}

func (c *cli) cmdLabs(ctx context.Context, args []string) error {
	fs := newFlags("labs")
	if err := parse(fs, args); err != nil {
		return err
	}
	_, client, err := c.session()
	if err != nil {
		return err
	}
	labs, err := client.ListLabs(ctx)
	if err != nil {
		return booking.Classify(err, "", "failed to list labs")
	}
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(labs)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tCAPACITY")
	for _, l := range labs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", l.ID, l.Name, l.Location, l.Capacity)
	}
	return tw.Flush()
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

func (c *cli) parseTime(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), c.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("--%s: cannot parse %q", flag, s)
}

func (c *cli) printBookings(list []model.Booking, now time.Time) error {
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLAB\tREQUESTER\tSTART\tEND\tSTATUS\tPURPOSE")
	for _, b := range list {
		status := string(b.Status)
		if b.Status == model.StatusPending && booking.IsUrgent(b, now) {
			status += " (urgent)"
		}
		if b.RejectedReason != "" {
			status += ": " + b.RejectedReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.LabID, b.RequesterID,
			b.StartTime.In(c.loc).Format("2006-01-02 15:04"), b.EndTime.In(c.loc).Format("15:04"), status, b.Purpose)
	}
	return tw.Flush()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
