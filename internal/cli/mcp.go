package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/MuchToMyDelight/hotspot/pkg/calltree"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/jfrconv"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
	"github.com/MuchToMyDelight/hotspot/pkg/xlog"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve profile analysis tools over the Model Context Protocol on stdio",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runMCP()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	return server.ServeStdio(newMCPServer(logger, cfg))
}

// maxLoadedProfiles bounds the profile cache, large recordings pinned
// forever would grow the server without limit.
const maxLoadedProfiles = 16

// mcpServer keeps parsed profiles and their call trees around between
// tool calls, clients tend to drill into one profile repeatedly.
type mcpServer struct {
	logger xlog.Logger
	cfg    *Config
	loaded *lru.Cache
}

type loadedProfile struct {
	prof *sample.Profile
	res  *calltree.Result
}

func newMCPServer(logger xlog.Logger, cfg *Config) *server.MCPServer {
	cache, err := lru.New(maxLoadedProfiles)
	if err != nil {
		panic(err)
	}
	s := &mcpServer{
		logger: logger,
		cfg:    cfg,
		loaded: cache,
	}

	srv := server.NewMCPServer(
		"hotspot",
		"1.0.0",
		server.WithLogging(),
	)

	srv.AddTool(mcp.NewTool("load_profile",
		mcp.WithDescription("Load a profile (pprof, collapsed stacks or JFR) and summarize its samples and cost channels"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the profile on disk"),
		),
		mcp.WithString("event",
			mcp.Description("JFR event kind to extract: cpu, wall, alloc or lock"),
		),
	), s.handleLoadProfile)

	srv.AddTool(mcp.NewTool("top_functions",
		mcp.WithDescription("Rank the hottest functions of a profile by self cost"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the profile on disk"),
		),
		mcp.WithNumber("top_n",
			mcp.Description("How many functions to return (default 10)"),
		),
		mcp.WithString("channel",
			mcp.Description("Cost channel to rank by (defaults to the profile's default sample type)"),
		),
		mcp.WithString("event",
			mcp.Description("JFR event kind to extract: cpu, wall, alloc or lock"),
		),
	), s.handleTopFunctions)

	srv.AddTool(mcp.NewTool("annotate_symbol",
		mcp.WithDescription("Attribute a profile's costs to the source lines of one function via objdump"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Profile with instruction addresses (pprof or perf script output)"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Function to annotate, named exactly as the profile names it"),
		),
		mcp.WithString("binary",
			mcp.Description("Unstripped binary to disassemble"),
		),
		mcp.WithString("disasm_file",
			mcp.Description("Pre-captured 'objdump -d -l' output to parse instead of running objdump"),
		),
		mcp.WithString("sysroot",
			mcp.Description("Directory prepended to source paths from the debug info"),
		),
		mcp.WithString("event",
			mcp.Description("perf event to attribute when the input is perf script output"),
		),
		mcp.WithNumber("highlight_line",
			mcp.Description("Source line to mark in the output"),
		),
	), s.handleAnnotateSymbol)

	srv.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List sample events available in a JFR recording"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the .jfr recording"),
		),
	), s.handleListEvents)

	return srv
}

func (s *mcpServer) load(ctx context.Context, path, event string) (*loadedProfile, error) {
	event = jfrEvent(path, event, s.cfg)
	key := path + "\x00" + event
	if cached, ok := s.loaded.Get(key); ok {
		return cached.(*loadedProfile), nil
	}

	prof, err := openProfile(ctx, s.logger, path, event)
	if err != nil {
		return nil, err
	}
	res, err := calltree.Build(ctx, prof)
	if err != nil {
		return nil, err
	}

	lp := &loadedProfile{prof: prof, res: res}
	s.loaded.Add(key, lp)
	return lp, nil
}

func (s *mcpServer) handleLoadProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event := request.GetString("event", "")

	lp, err := s.load(ctx, path, event)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load profile: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Loaded %s\n", path)
	fmt.Fprintf(&sb, "Samples: %d (%d discarded)\n",
		len(lp.prof.Samples), lp.prof.Stats.Discarded+lp.res.Stats.Discarded)
	fmt.Fprintf(&sb, "Call tree nodes: %d\n", lp.res.BottomUp.NumNodes())
	fmt.Fprintf(&sb, "Cost channels:\n")
	for i, name := range lp.prof.TypeNames {
		def := ""
		if i == lp.prof.DefaultType {
			def = " (default)"
		}
		fmt.Fprintf(&sb, "  %s: %s%s\n", name, humanize.Comma(lp.res.Totals[i]), def)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *mcpServer) handleTopFunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event := request.GetString("event", "")
	channel := request.GetString("channel", "")
	n := int(request.GetFloat("top_n", float64(s.cfg.TopCount)))

	lp, err := s.load(ctx, path, event)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load profile: %v", err)), nil
	}
	typ, err := resolveChannel(lp.prof, channel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tree := lp.res.BottomUp
	total := tree.TotalCost(typ)
	frames := calltree.TopN(tree, typ, n)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d functions by self %s (total %s)\n",
		len(frames), tree.TypeNames()[typ], humanize.Comma(total))
	for i, frame := range frames {
		fmt.Fprintf(&sb, "%3d. %12s  self %7s  incl %7s  %s\n",
			i+1,
			humanize.Comma(frame.Self),
			percent(frame.Self, total),
			percent(frame.Inclusive, total),
			frame.Symbol,
		)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *mcpServer) handleAnnotateSymbol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	view, err := buildSourceView(ctx, s.logger, sourceViewRequest{
		Input:      path,
		Binary:     request.GetString("binary", ""),
		Symbol:     symbol,
		Objdump:    s.cfg.Objdump,
		Sysroot:    request.GetString("sysroot", s.cfg.Sysroot),
		DisasmFile: request.GetString("disasm_file", ""),
		Event:      request.GetString("event", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to annotate %s: %v", symbol, err)), nil
	}
	if line := int(request.GetFloat("highlight_line", 0)); line > 0 {
		view.SetHighlightedLine(line)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s in %s\n\n", view.Symbol(), view.SourceFileName())
	writeViewTable(&sb, view)
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *mcpServer) handleListEvents(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	counts, err := jfrconv.Discover(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read recording: %v", err)), nil
	}
	if len(counts) == 0 {
		return mcp.NewToolResultText("recording carries no known sample events"), nil
	}

	var sb strings.Builder
	for _, event := range jfrconv.Events() {
		if n, ok := counts[event]; ok {
			fmt.Fprintf(&sb, "%-8s %d\n", event, n)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
