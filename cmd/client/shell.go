package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atinyakov/AuraTemple/internal/client/syncer"
	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

const helpText = `Commands:
  status               show aura, producers and subsystems
  meditate [n]         gain aura by hand, n times
  buy <id>             buy one producer
  ritual               perform a blessing ritual
  pray                 pray for a free producer
  rebirth              reset for a permanent bonus
  name <name>          set the leaderboard name
  register [name]      create an account
  login [name]         sign in, replacing local progress
  logout               forget the session, keep local progress
  leaderboard          show the top players
  help                 show this help
  exit                 save and quit`

// link is the part of the sync controller the shell drives.
type link interface {
	Status() syncer.Status
	Account() (string, bool)
	Leaderboard() []models.LeaderboardEntry
	SyncLeaderboard(force bool)
	Register(ctx context.Context, name, password string) error
	Login(ctx context.Context, name, password string) error
	Logout() error
}

// shell runs the interactive command loop against a game session.
type shell struct {
	session *game.Session
	link    link
	in      *bufio.Scanner
	out     io.Writer
}

func newShell(session *game.Session, l link, in io.Reader, out io.Writer) *shell {
	return &shell{session: session, link: l, in: bufio.NewScanner(in), out: out}
}

// run reads commands until exit or end of input.
func (sh *shell) run(ctx context.Context) {
	sh.printStatus()
	for {
		line, ok := prompt(sh.in, sh.out, "aura> ")
		if !ok {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if !sh.exec(ctx, args[0], args[1:]) {
			return
		}
	}
}

// exec runs one command and reports whether the loop should continue.
func (sh *shell) exec(ctx context.Context, cmd string, args []string) bool {
	switch cmd {
	case "help":
		fmt.Fprintln(sh.out, helpText)
	case "status", "s":
		sh.printStatus()
	case "meditate", "m":
		n := 1
		if len(args) > 0 {
			if _, err := fmt.Sscan(args[0], &n); err != nil || n < 1 {
				fmt.Fprintln(sh.out, "Usage: meditate [n]")
				return true
			}
		}
		for range min(n, 1000) {
			sh.session.Meditate()
		}
		fmt.Fprintf(sh.out, "Aura: %s\n", formatAura(sh.session.Snapshot().Aura))
	case "buy":
		if len(args) != 1 {
			fmt.Fprintln(sh.out, "Usage: buy <id>")
			return true
		}
		sh.buy(args[0])
	case "ritual":
		sh.ritual()
	case "pray":
		sh.pray()
	case "rebirth":
		sh.rebirth()
	case "name":
		if len(args) == 0 {
			fmt.Fprintln(sh.out, "Usage: name <name>")
			return true
		}
		if sh.session.SetName(strings.Join(args, " ")) {
			fmt.Fprintf(sh.out, "You are now %s\n", sh.session.Snapshot().PlayerName)
		} else {
			fmt.Fprintln(sh.out, "Name unchanged")
		}
	case "register", "login":
		sh.authenticate(ctx, cmd, args)
	case "logout":
		if err := sh.link.Logout(); err != nil {
			fmt.Fprintln(sh.out, "Logout failed:", err)
			return true
		}
		fmt.Fprintln(sh.out, "Logged out. Local progress kept.")
	case "leaderboard", "lb":
		sh.link.SyncLeaderboard(false)
		sh.printLeaderboard()
	case "exit", "quit":
		fmt.Fprintln(sh.out, "Bye")
		return false
	default:
		fmt.Fprintln(sh.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return true
}

func (sh *shell) buy(id string) {
	spec, ok := sh.session.Catalog().Producer(id)
	if !ok {
		fmt.Fprintf(sh.out, "No producer %q\n", id)
		return
	}
	if !sh.session.BuyProducer(id) {
		fmt.Fprintf(sh.out, "Not enough aura for %s\n", spec.Name)
		return
	}
	st := sh.session.Snapshot()
	h := st.Holding(id)
	fmt.Fprintf(sh.out, "Bought %s, you own %d\n", spec.Name, h.Owned)
}

func (sh *shell) ritual() {
	if !sh.session.Snapshot().Blessing.Unlocked {
		fmt.Fprintf(sh.out, "Rituals unlock at %d aura\n", game.BlessingUnlockThreshold)
		return
	}
	out, ok := sh.session.PerformRitual()
	if !ok {
		fmt.Fprintln(sh.out, "Not enough aura for a ritual")
		return
	}
	if out.Type == game.OutcomeNone {
		fmt.Fprintln(sh.out, "The ritual fades without a blessing")
		return
	}
	fmt.Fprintf(sh.out, "Blessing: %s (+%s%% rate)\n", out.Name, formatPercent(out.Bonus))
}

func (sh *shell) pray() {
	if !sh.session.Snapshot().Prayer.Unlocked {
		fmt.Fprintf(sh.out, "Prayer unlocks at %d aura\n", game.PrayerUnlockThreshold)
		return
	}
	reward, ok := sh.session.Pray()
	if !ok {
		fmt.Fprintf(sh.out, "Prayer ready in %s\n", sh.session.PrayerReadyIn().Round(time.Second))
		return
	}
	fmt.Fprintf(sh.out, "Your prayer brings a %s (you own %d)\n", reward.Name, reward.Owned)
}

func (sh *shell) rebirth() {
	st := sh.session.Snapshot()
	if !st.Rebirth.Unlocked {
		fmt.Fprintf(sh.out, "Rebirth unlocks at %s aura\n", formatAura(game.RebirthUnlockAura))
		return
	}
	if !sh.session.Rebirth() {
		fmt.Fprintf(sh.out, "Rebirth costs %s aura\n", formatAura(st.Rebirth.NextCost))
		return
	}
	st = sh.session.Snapshot()
	fmt.Fprintf(sh.out, "Reborn. Rebirths: %d, multiplier x%s\n", st.Rebirth.Count, formatAura(game.Multiplier(&st)))
}

func (sh *shell) authenticate(ctx context.Context, cmd string, args []string) {
	name, password, ok := promptCredentials(sh.in, sh.out, args)
	if !ok {
		return
	}
	var err error
	if cmd == "register" {
		err = sh.link.Register(ctx, name, password)
	} else {
		err = sh.link.Login(ctx, name, password)
	}
	if err != nil {
		fmt.Fprintln(sh.out, describeError(err))
		return
	}
	account, _ := sh.link.Account()
	fmt.Fprintf(sh.out, "Signed in as %s\n", account)
	sh.printStatus()
}

// describeError turns a sync failure into a message for the player.
func describeError(err error) string {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return "Name needs at least 3 characters and password at least 6"
	case errors.Is(err, errs.ErrUnauthorized):
		return "Wrong name or password"
	case errors.Is(err, errs.ErrConflict):
		return "That name is already taken"
	case errors.Is(err, errs.ErrRateLimited):
		return "Too many attempts, try again in a minute"
	case errors.Is(err, errs.ErrTransient):
		return "Server unavailable, playing locally"
	default:
		return "Something went wrong: " + err.Error()
	}
}

func (sh *shell) printStatus() {
	st := sh.session.Snapshot()
	cat := sh.session.Catalog()

	who := "guest"
	if st.PlayerName != "" {
		who = st.PlayerName
	}
	if account, ok := sh.link.Account(); ok {
		who = account + " (signed in)"
	}
	fmt.Fprintf(sh.out, "%s | %s\n", who, sh.link.Status())
	fmt.Fprintf(sh.out, "Aura: %s  (+%s/s)\n", formatAura(st.Aura), formatAura(sh.session.Rate()))

	tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tPRODUCER\tOWNED\tCOST\tEACH/S")
	for _, p := range cat.Producers {
		h := st.Holding(p.ID)
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, h.Owned, formatAura(h.Cost), formatAura(p.BaseProduction))
	}
	_ = tw.Flush()

	if st.Blessing.Unlocked {
		fmt.Fprintf(sh.out, "Blessing: cost %s, rate bonus +%s%%\n", formatAura(st.Blessing.Cost), formatPercent(st.Blessing.RateBonus))
	}
	if st.Prayer.Unlocked {
		if wait := sh.session.PrayerReadyIn(); wait > 0 {
			fmt.Fprintf(sh.out, "Prayer: ready in %s\n", wait.Round(time.Second))
		} else {
			fmt.Fprintln(sh.out, "Prayer: ready")
		}
	}
	if st.Rebirth.Unlocked {
		fmt.Fprintf(sh.out, "Rebirth: %d done, %d points, next at %s\n", st.Rebirth.Count, st.Rebirth.Points, formatAura(st.Rebirth.NextCost))
	}
}

func (sh *shell) printLeaderboard() {
	board := sh.link.Leaderboard()
	if len(board) == 0 {
		fmt.Fprintln(sh.out, "The leaderboard is empty")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tNAME\tAURA\tREBIRTHS")
	for i, e := range board {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%d\n", i+1, e.Name, formatAura(e.Aura), e.Rebirths)
	}
	_ = tw.Flush()
}

func formatAura(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.0f", fraction*100)
}
