// Package mcpserver exposes the forgestr workflows as Model Context Protocol
// tools over stdio, so agent frontends can drive accounts, announcements and
// pull requests without shelling out to the CLI.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"
	"forgestr/engine/actors"
	"forgestr/libraries/forge"
	"forgestr/libraries/vault"
	"forgestr/messaging/relays"
)

const version = "0.1.0"

type forgeServer struct{}

func (f *forgeServer) openVault() (*vault.Vault, error) {
	return vault.Load(actors.MakeOrGetConfig().GetString("accountsFile"))
}

// Command returns the cobra command that runs the stdio server.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "run the MCP tool server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve()
		},
	}
}

func Serve() error {
	f := &forgeServer{}
	s := server.NewMCPServer("forgestr", version)

	s.AddTool(mcp.NewTool("account_import",
		mcp.WithDescription("Import a private key (nsec or hex) into the encrypted vault and make it active."),
		mcp.WithString("private_key", mcp.Required(), mcp.Description("nsec or hex private key")),
		mcp.WithString("password", mcp.Required(), mcp.Description("Password to encrypt the key")),
	), f.accountImportHandler)

	s.AddTool(mcp.NewTool("account_logout",
		mcp.WithDescription("Clear the active account."),
	), f.accountLogoutHandler)

	s.AddTool(mcp.NewTool("account_list",
		mcp.WithDescription("List stored accounts and which one is active."),
	), f.accountListHandler)

	s.AddTool(mcp.NewTool("account_export",
		mcp.WithDescription("Export the active account's private key as nsec."),
		mcp.WithString("password", mcp.Required(), mcp.Description("Password to decrypt the key")),
	), f.accountExportHandler)

	s.AddTool(mcp.NewTool("repo_detect",
		mcp.WithDescription("Detect repository announcement data from a local git repository."),
		mcp.WithString("repo_path", mcp.Required(), mcp.Description("Path to the git repository")),
	), f.repoDetectHandler)

	s.AddTool(mcp.NewTool("repo_state",
		mcp.WithDescription("Read the repository's current refs and HEAD."),
		mcp.WithString("repo_path", mcp.Required(), mcp.Description("Path to the git repository")),
	), f.repoStateHandler)

	s.AddTool(mcp.NewTool("repo_init",
		mcp.WithDescription("Announce a repository on nostr and record the relay set in git config."),
		mcp.WithString("repo_path", mcp.Required(), mcp.Description("Path to the git repository")),
		mcp.WithString("name", mcp.Description("Repository name")),
		mcp.WithString("description", mcp.Description("Repository description")),
		mcp.WithString("relays", mcp.Description("Comma-separated relay URLs")),
		mcp.WithString("password", mcp.Required(), mcp.Description("Password to decrypt the signing key")),
	), f.repoInitHandler)

	s.AddTool(mcp.NewTool("pr_send",
		mcp.WithDescription("Publish local commits as a pull request."),
		mcp.WithString("repo_path", mcp.Required(), mcp.Description("Path to the git repository")),
		mcp.WithString("since", mcp.Description("Commit range, e.g. HEAD~2 (default HEAD~1)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Pull request title")),
		mcp.WithString("description", mcp.Description("Pull request description")),
		mcp.WithString("in_reply_to", mcp.Description("Event id of the pull request being updated")),
		mcp.WithString("password", mcp.Required(), mcp.Description("Password to decrypt the signing key")),
	), f.prSendHandler)

	s.AddTool(mcp.NewTool("pr_list",
		mcp.WithDescription("List pull requests for a repository."),
		mcp.WithString("repo_path", mcp.Required(), mcp.Description("Path to the git repository")),
	), f.prListHandler)

	return server.ServeStdio(s)
}

func stringArg(request mcp.CallToolRequest, key string) string {
	args, _ := request.Params.Arguments.(map[string]any)
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (f *forgeServer) accountImportHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := f.openVault()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	npub, err := v.Login(stringArg(request, "private_key"), stringArg(request, "password"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Logged in as %s", npub)), nil
}

func (f *forgeServer) accountLogoutHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := f.openVault()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	npub, err := v.Logout()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Logged out from %s", npub)), nil
}

func (f *forgeServer) accountListHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := f.openVault()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return jsonResult(v.List())
}

func (f *forgeServer) accountExportHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := f.openVault()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	nsec, err := v.Export(stringArg(request, "password"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(nsec), nil
}

func (f *forgeServer) repoDetectHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	announcement, err := forge.DetectFromGit(stringArg(request, "repo_path"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return jsonResult(announcement)
}

func (f *forgeServer) repoStateHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoPath := stringArg(request, "repo_path")
	announcement, err := forge.DetectFromGit(repoPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	state, err := forge.CurrentState(repoPath, announcement.Identifier)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return jsonResult(state)
}

func (f *forgeServer) repoInitHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoPath := stringArg(request, "repo_path")
	v, err := f.openVault()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	keys, err := v.ActiveKeys(stringArg(request, "password"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	announcement, err := forge.DetectFromGit(repoPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	if name := stringArg(request, "name"); len(name) > 0 {
		announcement.Name = name
		announcement.Identifier = forge.SanitizeIdentifier(name)
	}
	if description := stringArg(request, "description"); len(description) > 0 {
		announcement.Description = description
	}
	if relayArg := stringArg(request, "relays"); len(relayArg) > 0 {
		announcement.Relays = nil
		for _, relay := range strings.Split(relayArg, ",") {
			if relay = strings.TrimSpace(relay); len(relay) > 0 {
				announcement.Relays = append(announcement.Relays, relay)
			}
		}
	}
	if len(announcement.Relays) == 0 {
		announcement.Relays = actors.MakeOrGetConfig().GetStringSlice("relays")
	}
	npub, err := nip19.EncodePublicKey(keys.PublicKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	announcement.Maintainers = []string{npub}
	state, err := forge.CurrentState(repoPath, announcement.Identifier)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	result, err := forge.AnnounceRepository(announcement, state, keys)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	if err := forge.UpdateGitConfig(repoPath, announcement, result.NostrURL); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return jsonResult(result)
}

func (f *forgeServer) prSendHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoPath := stringArg(request, "repo_path")
	v, err := f.openVault()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	keys, err := v.ActiveKeys(stringArg(request, "password"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	announcement, err := forge.DetectFromGit(repoPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	if len(announcement.Relays) == 0 {
		return mcp.NewToolResultError("No relays configured for repository, run repo_init first"), nil
	}
	since := stringArg(request, "since")
	if len(since) == 0 {
		since = "HEAD~1"
	}
	patches, err := forge.PatchesSince(repoPath, since, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	if len(patches) == 0 {
		return mcp.NewToolResultText("No patches to send"), nil
	}
	coordinate := forge.Coordinate(keys.PublicKey, announcement.Identifier)
	events, err := forge.AssemblePullRequest(keys, coordinate,
		stringArg(request, "title"), stringArg(request, "description"),
		patches, announcement.RootCommit, stringArg(request, "in_reply_to"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	outcome := relays.PublishToRelays(events, announcement.Relays)
	if err := outcome.Err(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"pull_request_id": events[len(events)-1].ID,
		"patches":         len(patches),
		"outcome":         outcome,
	})
}

func (f *forgeServer) prListHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoPath := stringArg(request, "repo_path")
	announcement, err := forge.DetectFromGit(repoPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	if len(announcement.Relays) == 0 {
		return mcp.NewToolResultError("No relays configured for repository, run repo_init first"), nil
	}
	npub, ok := forge.GetRepoOwner(repoPath)
	if !ok {
		v, err := f.openVault()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}
		if v.ActiveNpub == "" {
			return mcp.NewToolResultError("Repository owner not found in config and no active account"), nil
		}
		npub = v.ActiveNpub
	}
	prefix, value, err := nip19.Decode(npub)
	if err != nil || prefix != "npub" {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %s is not a valid npub", npub)), nil
	}
	coordinate := forge.Coordinate(value.(string), announcement.Identifier)
	prs := forge.ListPullRequests(coordinate, announcement.Relays,
		actors.MakeOrGetConfig().GetDuration("fetchTimeout"))
	return jsonResult(prs)
}
