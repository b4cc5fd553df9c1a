package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/gposync"
)

type command struct {
	usage   string
	minArgs int
	run     func(ctx context.Context, a *App, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":        {"help", 0, cmdHelp},
		"devices":     {"devices", 0, cmdDevices},
		"device":      {"device <id> [caption] [type]", 1, cmdDevice},
		"subscribe":   {"subscribe <url>", 1, cmdSubscribe},
		"unsubscribe": {"unsubscribe <url>", 1, cmdUnsubscribe},
		"play":        {"play <podcast> <episode> <position> [total]", 3, cmdPlay},
		"action":      {"action <download|delete|new|flattr> <podcast> <episode>", 3, cmdAction},
		"pending":     {"pending", 0, cmdPending},
		"sync":        {"sync", 0, cmdSync},
		"subs":        {"subs [device]", 0, cmdSubs},
		"remote-subs": {"remote-subs [device]", 0, cmdRemoteSubs},
		"all-subs":    {"all-subs", 0, cmdAllSubs},
		"actions":     {"actions [podcast]", 0, cmdActions},
		"search":      {"search <query>", 1, cmdSearch},
		"toplist":     {"toplist [n]", 0, cmdToplist},
		"tags":        {"tags [n]", 0, cmdTags},
		"tag":         {"tag <tag> [n]", 1, cmdTag},
		"podcast":     {"podcast <url>", 1, cmdPodcast},
		"episode":     {"episode <podcast> <url>", 2, cmdEpisode},
		"favorites":   {"favorites", 0, cmdFavorites},
		"suggestions": {"suggestions [n]", 0, cmdSuggestions},
		"settings":    {"settings <account|device|podcast|episode> [target...]", 1, cmdSettings},
		"set":         {"set <account|device|podcast|episode> [target...] [key=value...]", 1, cmdSet},
		"checkpoint":  {"checkpoint", 0, cmdCheckpoint},
		"reset":       {"reset <subscriptions|episode_actions>", 1, cmdReset},
	}
}

func (a *App) exec(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(ctx, a, args[1:])
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[i])
	}
	return n, nil
}

func optArg(args []string, i int) string {
	if len(args) <= i {
		return ""
	}
	return args[i]
}

func cmdHelp(_ context.Context, a *App, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(a.out, "  "+commands[name].usage)
	}
	fmt.Fprintln(a.out, "  exit")
	return nil
}

func cmdDevices(ctx context.Context, a *App, _ []string) error {
	devices, err := a.client.ListDevices(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSUBSCRIPTIONS\tCAPTION")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.Type, d.Subscriptions, d.Caption)
	}
	return tw.Flush()
}

func cmdDevice(ctx context.Context, a *App, args []string) error {
	var upd gposync.DeviceUpdate
	if caption := optArg(args, 1); caption != "" {
		upd.Caption = &caption
	}
	if typ := gposync.DeviceType(optArg(args, 2)); typ != "" {
		upd.Type = &typ
	}
	return a.client.UpdateDevice(ctx, args[0], upd)
}

func cmdSubscribe(ctx context.Context, a *App, args []string) error {
	if err := a.client.Subscribe(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "queued, run sync to upload")
	return nil
}

func cmdUnsubscribe(ctx context.Context, a *App, args []string) error {
	if err := a.client.Unsubscribe(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "queued, run sync to upload")
	return nil
}

func cmdPlay(ctx context.Context, a *App, args []string) error {
	pos, err := intArg(args, 2, 0)
	if err != nil {
		return err
	}
	act := gposync.EpisodeAction{
		Podcast:   args[0],
		Episode:   args[1],
		Action:    gposync.ActionPlay,
		Timestamp: a.now(),
		Position:  &pos,
	}
	if len(args) > 3 {
		total, err := intArg(args, 3, 0)
		if err != nil {
			return err
		}
		act.Total = &total
	}
	return a.client.RecordAction(ctx, act)
}

func cmdAction(ctx context.Context, a *App, args []string) error {
	kind := gposync.ActionKind(args[0])
	if kind == gposync.ActionPlay {
		return fmt.Errorf("use play for play actions")
	}
	return a.client.RecordAction(ctx, gposync.EpisodeAction{
		Podcast:   args[1],
		Episode:   args[2],
		Action:    kind,
		Timestamp: a.now(),
	})
}

func cmdPending(ctx context.Context, a *App, _ []string) error {
	entries, err := a.client.Pending(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "nothing pending")
		return nil
	}
	for _, e := range entries {
		if e.Action != nil {
			fmt.Fprintf(a.out, "%s %s %s\n", e.Action.Action, e.Action.Podcast, e.Action.Episode)
			continue
		}
		fmt.Fprintf(a.out, "%s %s\n", e.Kind, e.URL)
	}
	return nil
}

func cmdSync(ctx context.Context, a *App, _ []string) error {
	report, err := a.client.Sync(ctx)
	if report != nil && report.Subscriptions != nil {
		s := report.Subscriptions
		fmt.Fprintf(a.out, "subscriptions: +%d -%d remote, %d conflicts, checkpoint %d\n",
			len(s.RemoteAdded), len(s.RemoteRemoved), len(s.Conflicts), s.Checkpoint.Cursor)
	}
	if report != nil && report.Episodes != nil {
		e := report.Episodes
		fmt.Fprintf(a.out, "episode actions: %d uploaded, %d applied, %d skipped, checkpoint %d\n",
			len(e.Confirmed), len(e.Applied), e.Skipped, e.Checkpoint.Cursor)
	}
	if err != nil && gposync.IsRetryable(err) {
		return fmt.Errorf("%w (pending changes are kept, try again)", err)
	}
	return err
}

func printLines(a *App, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(a.out, l)
	}
}

func cmdSubs(ctx context.Context, a *App, args []string) error {
	urls, err := a.client.Subscriptions(ctx, optArg(args, 0))
	if err != nil {
		return err
	}
	printLines(a, urls)
	return nil
}

func cmdRemoteSubs(ctx context.Context, a *App, args []string) error {
	urls, err := a.client.DeviceSubscriptions(ctx, optArg(args, 0))
	if err != nil {
		return err
	}
	printLines(a, urls)
	return nil
}

func printPodcasts(a *App, podcasts []gposync.Podcast) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, p := range podcasts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Title, p.Subscribers, p.URL)
	}
	return tw.Flush()
}

func cmdAllSubs(ctx context.Context, a *App, _ []string) error {
	podcasts, err := a.client.AllSubscriptions(ctx)
	if err != nil {
		return err
	}
	return printPodcasts(a, podcasts)
}

func cmdActions(ctx context.Context, a *App, args []string) error {
	actions, err := a.client.EpisodeActions(ctx, gposync.ActionFilter{Podcast: optArg(args, 0)})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, act := range actions {
		extra := ""
		if act.Position != nil {
			extra = strconv.Itoa(*act.Position)
			if act.Total != nil {
				extra += "/" + strconv.Itoa(*act.Total)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			act.Timestamp.Format("2006-01-02 15:04:05"), act.Device, act.Action, act.Episode, extra)
	}
	return tw.Flush()
}

func cmdSearch(ctx context.Context, a *App, args []string) error {
	podcasts, err := a.client.Search(ctx, strings.Join(args, " "), 0)
	if err != nil {
		return err
	}
	return printPodcasts(a, podcasts)
}

func cmdToplist(ctx context.Context, a *App, args []string) error {
	n, err := intArg(args, 0, 10)
	if err != nil {
		return err
	}
	podcasts, err := a.client.Toplist(ctx, n, 0)
	if err != nil {
		return err
	}
	return printPodcasts(a, podcasts)
}

func cmdTags(ctx context.Context, a *App, args []string) error {
	n, err := intArg(args, 0, 10)
	if err != nil {
		return err
	}
	tags, err := a.client.TopTags(ctx, n)
	if err != nil {
		return err
	}
	for _, t := range tags {
		fmt.Fprintf(a.out, "%s (%d)\n", t.Tag, t.Usage)
	}
	return nil
}

func cmdTag(ctx context.Context, a *App, args []string) error {
	n, err := intArg(args, 1, 10)
	if err != nil {
		return err
	}
	podcasts, err := a.client.PodcastsForTag(ctx, args[0], n)
	if err != nil {
		return err
	}
	return printPodcasts(a, podcasts)
}

func cmdPodcast(ctx context.Context, a *App, args []string) error {
	p, err := a.client.PodcastData(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n%s\nsubscribers: %d\n", p.Title, p.URL, p.Description, p.Subscribers)
	return nil
}

func cmdEpisode(ctx context.Context, a *App, args []string) error {
	e, err := a.client.EpisodeData(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n%s\n", e.Title, e.URL, e.PodcastTitle)
	return nil
}

func printEpisodes(a *App, episodes []gposync.Episode) {
	for _, e := range episodes {
		fmt.Fprintf(a.out, "%s - %s\n", e.PodcastTitle, e.Title)
	}
}

func cmdFavorites(ctx context.Context, a *App, _ []string) error {
	favs, err := a.client.Favorites(ctx)
	if err != nil {
		return err
	}
	printEpisodes(a, favs)
	return nil
}

func cmdSuggestions(ctx context.Context, a *App, args []string) error {
	n, err := intArg(args, 0, 10)
	if err != nil {
		return err
	}
	podcasts, err := a.client.Suggestions(ctx, n)
	if err != nil {
		return err
	}
	return printPodcasts(a, podcasts)
}

// settingsTarget consumes the scope's target arguments and returns the rest.
func (a *App) settingsTarget(args []string) (gposync.SettingsTarget, []string, error) {
	t := gposync.SettingsTarget{Scope: gposync.SettingsScope(args[0])}
	rest := args[1:]
	take := func() string {
		if len(rest) == 0 || strings.Contains(rest[0], "=") {
			return ""
		}
		v := rest[0]
		rest = rest[1:]
		return v
	}
	switch t.Scope {
	case gposync.ScopeAccount:
	case gposync.ScopeDevice:
		t.Device = take()
		if t.Device == "" {
			t.Device = a.client.Device()
		}
	case gposync.ScopePodcast:
		t.Podcast = take()
	case gposync.ScopeEpisode:
		t.Podcast = take()
		t.Episode = take()
	default:
		return t, nil, fmt.Errorf("unknown settings scope %q", args[0])
	}
	return t, rest, nil
}

func printSettings(a *App, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "%s=%s\n", k, m[k])
	}
}

func cmdSettings(ctx context.Context, a *App, args []string) error {
	target, _, err := a.settingsTarget(args)
	if err != nil {
		return err
	}
	m, err := a.client.Settings(ctx, target)
	if err != nil {
		return err
	}
	printSettings(a, m)
	return nil
}

func cmdSet(ctx context.Context, a *App, args []string) error {
	target, rest, err := a.settingsTarget(args)
	if err != nil {
		return err
	}
	var set map[string]string
	var remove []string
	if len(rest) == 0 {
		set, remove, err = GetSettings(a.reader, a.out)
	} else {
		set, remove, err = parseSettings(rest)
	}
	if err != nil {
		return err
	}
	m, err := a.client.SaveSettings(ctx, target, set, remove)
	if err != nil {
		return err
	}
	printSettings(a, m)
	return nil
}

func cmdCheckpoint(ctx context.Context, a *App, _ []string) error {
	for _, rc := range []gposync.ResourceClass{gposync.ResourceSubscriptions, gposync.ResourceEpisodeActions} {
		cp, err := a.client.Checkpoint(ctx, "", rc)
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Fprintf(a.out, "%s: never synced\n", rc)
			continue
		}
		fmt.Fprintf(a.out, "%s: %d (%s)\n", rc, cp.Cursor, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func cmdReset(ctx context.Context, a *App, args []string) error {
	return a.client.ResetCheckpoint(ctx, "", gposync.ResourceClass(args[0]))
}
