package forge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"golang.org/x/term"
	"forgestr/engine/actors"
	"forgestr/engine/library"
	"forgestr/libraries/vault"
	"forgestr/messaging/relays"
)

func openVault() (*vault.Vault, error) {
	return vault.Load(actors.MakeOrGetConfig().GetString("accountsFile"))
}

// readPassword takes the FORGESTR_PASSWORD env var if set, otherwise prompts
// on stderr with echo disabled.
func readPassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv("FORGESTR_PASSWORD"); ok {
		return password, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func npubToHex(npub string) (library.Account, error) {
	prefix, value, err := nip19.Decode(npub)
	if err != nil || prefix != "npub" {
		return "", fmt.Errorf("%s is not a valid npub", npub)
	}
	return value.(string), nil
}

func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "forgestr",
		Short:         "publish git repositories and pull requests over nostr",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(accountCommand())
	rootCmd.AddCommand(initCommand())
	rootCmd.AddCommand(sendCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(syncCommand())
	return rootCmd
}

func accountCommand() *cobra.Command {
	account := &cobra.Command{
		Use:   "account",
		Short: "manage signing identities",
	}

	var nsec, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "store a private key encrypted under a password and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			if len(password) == 0 {
				if password, err = readPassword("Enter password to encrypt key: "); err != nil {
					return err
				}
			}
			npub, err := v.Login(nsec, password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", npub)
			return nil
		},
	}
	login.Flags().StringVar(&nsec, "nsec", "", "nsec or hex private key")
	login.Flags().StringVar(&password, "password", "", "password to encrypt the key (prompts if not provided)")
	login.MarkFlagRequired("nsec")
	account.AddCommand(login)

	logout := &cobra.Command{
		Use:   "logout",
		Short: "clear the active account",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			npub, err := v.Logout()
			if err != nil {
				return err
			}
			fmt.Printf("Logged out from %s\n", npub)
			return nil
		},
	}
	account.AddCommand(logout)

	var exportPassword string
	export := &cobra.Command{
		Use:   "export",
		Short: "print the active account's private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			if len(exportPassword) == 0 {
				if exportPassword, err = readPassword("Enter password to decrypt key: "); err != nil {
					return err
				}
			}
			nsecOut, err := v.Export(exportPassword)
			if err != nil {
				return err
			}
			fmt.Printf("Private key: %s\n", nsecOut)
			return nil
		},
	}
	export.Flags().StringVar(&exportPassword, "password", "", "password to decrypt the key (prompts if not provided)")
	account.AddCommand(export)

	list := &cobra.Command{
		Use:   "list",
		Short: "list stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			accounts := v.List()
			if len(accounts) == 0 {
				fmt.Fprintln(os.Stderr, "No accounts found")
				return nil
			}
			fmt.Fprintln(os.Stderr, "Accounts:")
			for _, info := range accounts {
				if info.Active {
					fmt.Fprintf(os.Stderr, "  %s (active)\n", info.Npub)
				} else {
					fmt.Fprintf(os.Stderr, "  %s\n", info.Npub)
				}
			}
			return nil
		},
	}
	account.AddCommand(list)

	var createPassword string
	create := &cobra.Command{
		Use:   "create",
		Short: "generate a new keypair from seed words and log in with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedWords, privateKey, err := vault.GenerateSecret()
			if err != nil {
				return err
			}
			v, err := openVault()
			if err != nil {
				return err
			}
			if len(createPassword) == 0 {
				if createPassword, err = readPassword("Enter password to encrypt key: "); err != nil {
					return err
				}
			}
			npub, err := v.Login(privateKey, createPassword)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Write down the seed words if you want to keep this account:")
			fmt.Fprintf(os.Stderr, "\n  %s\n\n", seedWords)
			fmt.Printf("Logged in as %s\n", npub)
			return nil
		},
	}
	create.Flags().StringVar(&createPassword, "password", "", "password to encrypt the key (prompts if not provided)")
	account.AddCommand(create)

	return account
}

func initCommand() *cobra.Command {
	var repoPath, name, description, password string
	var relayURLs, web, maintainers []string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "announce this repository on nostr and record the relay set in git config",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			if len(password) == 0 {
				if password, err = readPassword("Enter password: "); err != nil {
					return err
				}
			}
			keys, err := v.ActiveKeys(password)
			if err != nil {
				return err
			}
			announcement, err := DetectFromGit(repoPath)
			if err != nil {
				return err
			}
			if len(name) > 0 {
				announcement.Name = name
				announcement.Identifier = SanitizeIdentifier(name)
			}
			if len(description) > 0 {
				announcement.Description = description
			}
			if len(relayURLs) > 0 {
				announcement.Relays = relayURLs
			}
			if len(announcement.Relays) == 0 {
				announcement.Relays = actors.MakeOrGetConfig().GetStringSlice("relays")
			}
			announcement.Web = web
			npub, err := nip19.EncodePublicKey(keys.PublicKey)
			if err != nil {
				return err
			}
			announcement.Maintainers = maintainers
			if !slices.Contains(announcement.Maintainers, npub) {
				announcement.Maintainers = append(announcement.Maintainers, npub)
			}

			state, err := CurrentState(repoPath, announcement.Identifier)
			if err != nil {
				return err
			}
			library.LogCLI(fmt.Sprintf("Publishing %s to %d relays", announcement.Identifier, len(announcement.Relays)), 4)
			result, err := AnnounceRepository(announcement, state, keys)
			printOutcome(result.Outcome)
			if err != nil {
				return err
			}
			if err := UpdateGitConfig(repoPath, announcement, result.NostrURL); err != nil {
				return err
			}
			fmt.Printf("Announced %s\n", result.NostrURL)
			return nil
		},
	}
	initCmd.Flags().StringVar(&repoPath, "repo-path", ".", "repository path")
	initCmd.Flags().StringVarP(&name, "name", "n", "", "repository name (defaults to the directory name)")
	initCmd.Flags().StringVarP(&description, "description", "d", "", "repository description")
	initCmd.Flags().StringSliceVar(&relayURLs, "relay", nil, "relay to announce on (repeatable)")
	initCmd.Flags().StringSliceVar(&web, "web", nil, "web URL for the repository (repeatable)")
	initCmd.Flags().StringSliceVar(&maintainers, "maintainer", nil, "additional maintainer npub (repeatable)")
	initCmd.Flags().StringVar(&password, "password", "", "password to decrypt the signing key")
	return initCmd
}

func sendCommand() *cobra.Command {
	var repoPath, title, description, inReplyTo, password string
	send := &cobra.Command{
		Use:   "send [since]",
		Short: "publish local commits as a pull request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			since := "HEAD~1"
			if len(args) > 0 {
				since = args[0]
			}
			v, err := openVault()
			if err != nil {
				return err
			}
			if len(password) == 0 {
				if password, err = readPassword("Enter password: "); err != nil {
					return err
				}
			}
			keys, err := v.ActiveKeys(password)
			if err != nil {
				return err
			}
			announcement, err := DetectFromGit(repoPath)
			if err != nil {
				return err
			}
			if len(announcement.Relays) == 0 {
				fmt.Fprintln(os.Stderr, "Warning: no relays configured for repository, run 'forgestr init' first")
				return nil
			}
			library.LogCLI(fmt.Sprintf("Generating patches from %s", since), 4)
			patches, err := PatchesSince(repoPath, since, 0)
			if err != nil {
				return err
			}
			if len(patches) == 0 {
				fmt.Fprintln(os.Stderr, "No patches to send")
				return nil
			}
			library.LogCLI(fmt.Sprintf("Generated %d patch(es)", len(patches)), 4)
			if len(title) == 0 {
				if title, err = readLine("Enter PR title: "); err != nil {
					return err
				}
			}
			if len(description) == 0 {
				if description, err = readLine("Enter PR description (optional): "); err != nil {
					return err
				}
			}
			coordinate := Coordinate(keys.PublicKey, announcement.Identifier)
			events, err := AssemblePullRequest(keys, coordinate, title, description,
				patches, announcement.RootCommit, inReplyTo)
			if err != nil {
				return err
			}
			outcome := relays.PublishToRelays(events, announcement.Relays)
			printOutcome(outcome)
			if err := outcome.Err(); err != nil {
				return err
			}
			summary := events[len(events)-1]
			// relays apply writes asynchronously, poll until the summary shows up
			err = relays.DefaultBackoff().Do(func() (bool, error) {
				found := relays.FetchEvents(announcement.Relays, nostr.Filters{nostr.Filter{
					IDs: []string{summary.ID},
				}}, actors.MakeOrGetConfig().GetDuration("fetchTimeout"))
				return len(found) > 0, nil
			})
			if err != nil {
				library.LogCLI(fmt.Sprintf("pull request %s not yet visible on any relay: %s", summary.ID, err), 2)
			}
			fmt.Printf("Published pull request %s\n", summary.ID)
			return nil
		},
	}
	send.Flags().StringVar(&repoPath, "repo-path", ".", "repository path")
	send.Flags().StringVarP(&title, "title", "t", "", "pull request title")
	send.Flags().StringVarP(&description, "description", "d", "", "pull request description")
	send.Flags().StringVar(&inReplyTo, "in-reply-to", "", "event id of the pull request being updated")
	send.Flags().StringVar(&password, "password", "", "password to decrypt the signing key")
	return send
}

func listCommand() *cobra.Command {
	var repoPath string
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "list pull requests for this repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			announcement, err := DetectFromGit(repoPath)
			if err != nil {
				return err
			}
			if len(announcement.Relays) == 0 {
				fmt.Fprintln(os.Stderr, "Warning: no relays configured for repository, run 'forgestr init' first")
				return nil
			}
			npub, ok := GetRepoOwner(repoPath)
			if !ok {
				v, err := openVault()
				if err != nil {
					return err
				}
				if v.ActiveNpub == "" {
					return fmt.Errorf("repository owner not found in config and no active account, please login first")
				}
				npub = v.ActiveNpub
			}
			owner, err := npubToHex(npub)
			if err != nil {
				return err
			}
			coordinate := Coordinate(owner, announcement.Identifier)
			library.LogCLI(fmt.Sprintf("Fetching pull requests from %d relay(s)", len(announcement.Relays)), 4)
			prs := ListPullRequests(coordinate, announcement.Relays,
				actors.MakeOrGetConfig().GetDuration("fetchTimeout"))
			if asJSON {
				out, err := json.MarshalIndent(prs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			if len(prs) == 0 {
				fmt.Fprintln(os.Stderr, "No pull requests found")
				return nil
			}
			fmt.Fprintf(os.Stderr, "\nFound %d pull request(s):\n\n", len(prs))
			for i, pr := range prs {
				fmt.Fprintf(os.Stderr, "PR #%d\n%s%s\n", i+1, FormatPullRequest(pr), strings.Repeat("-", 80))
			}
			return nil
		},
	}
	list.Flags().StringVar(&repoPath, "repo-path", ".", "repository path")
	list.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return list
}

func syncCommand() *cobra.Command {
	var repoPath string
	sync := &cobra.Command{
		Use:   "sync",
		Short: "compare local git state against the latest relay state",
		RunE: func(cmd *cobra.Command, args []string) error {
			announcement, err := DetectFromGit(repoPath)
			if err != nil {
				return err
			}
			local, err := CurrentState(repoPath, announcement.Identifier)
			if err != nil {
				return err
			}
			fmt.Printf("Repository: %s\nIdentifier: %s\n\n", announcement.Name, announcement.Identifier)
			fmt.Println("Local Git State:")
			fmt.Println(strings.Repeat("-", 40))
			printRefs(local.Refs)
			if len(announcement.Relays) == 0 {
				return nil
			}
			fmt.Printf("\nFetching state from %d relay(s)...\n", len(announcement.Relays))
			tm := make(nostr.TagMap)
			tm["d"] = []string{announcement.Identifier}
			events := relays.FetchEvents(announcement.Relays, nostr.Filters{nostr.Filter{
				Kinds: []int{KindRepoState},
				Tags:  tm,
			}}, actors.MakeOrGetConfig().GetDuration("fetchTimeout"))
			var latest *nostr.Event
			for i := range events {
				if latest == nil || events[i].CreatedAt > latest.CreatedAt {
					latest = &events[i]
				}
			}
			if latest == nil {
				fmt.Println("\nNo remote state found")
				return nil
			}
			remote := StateFromEvent(*latest)
			fmt.Println("\nRemote Nostr State:")
			fmt.Println(strings.Repeat("-", 40))
			printRefs(remote.Refs)
			fmt.Printf("\nLast updated: %s\n", latest.CreatedAt.Time().Format(time.RFC1123))
			return nil
		},
	}
	sync.Flags().StringVar(&repoPath, "repo-path", ".", "repository path")
	return sync
}

func printRefs(refs map[string]library.Sha1) {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		short := refs[name]
		if len(short) > 8 {
			short = short[0:8]
		}
		fmt.Printf("%-20s %s\n", name, short)
	}
}

func printOutcome(outcome relays.Outcome) {
	for _, relay := range outcome.Succeeded {
		fmt.Fprintf(os.Stderr, "  ok      %s\n", relay)
	}
	for _, failure := range outcome.Failed {
		fmt.Fprintf(os.Stderr, "  failed  %s: %s\n", failure.Relay, failure.Reason)
	}
}
