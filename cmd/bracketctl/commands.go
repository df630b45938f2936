package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/spf13/cobra"
)

var (
	format          string
	minParticipants int
	maxParticipants int
	swissRounds     int
	seed            int
	displayName     string
	score           string
	statusFilter    string
	formatFilter    string
)

func init() {
	createCmd.Flags().StringVar(&format, "format", string(bracket.SingleElimination), "single_elimination, double_elimination, round_robin or swiss")
	createCmd.Flags().IntVar(&minParticipants, "min", 0, "Minimum participants needed to start")
	createCmd.Flags().IntVar(&maxParticipants, "max", 0, "Maximum participants, 0 for no limit")
	createCmd.Flags().IntVar(&swissRounds, "rounds", 0, "Swiss rounds, 0 for ceil(log2(players))")

	listCmd.Flags().StringVar(&statusFilter, "status", "", "Only tournaments in this status")
	listCmd.Flags().StringVar(&formatFilter, "format", "", "Only tournaments of this format")

	registerCmd.Flags().IntVar(&seed, "seed", 0, "Seed, 0 to leave unseeded")
	registerCmd.Flags().StringVar(&displayName, "name", "", "Display name of the player")

	resultCmd.Flags().StringVar(&score, "score", "", "Score from player 1's view, like 3-1")

	rootCmd.AddCommand(healthCmd, createCmd, listCmd, showCmd, registerCmd, startCmd,
		beginCmd, resultCmd, advanceCmd, standingsCmd, placementCmd, cancelCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodGet, "/health", nil)
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a tournament open for registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := bracket.ParseFormat(format)
		if err != nil {
			return err
		}
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments", map[string]any{
			"name":             args[0],
			"format":           f,
			"min_participants": minParticipants,
			"max_participants": maxParticipants,
			"swiss_rounds":     swissRounds,
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tournaments",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if statusFilter != "" {
			query.Set("status", statusFilter)
		}
		if formatFilter != "" {
			query.Set("format", formatFilter)
		}
		endpoint := "/tournaments"
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		return performRequest(cmd.OutOrStdout(), http.MethodGet, endpoint, nil)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <tournament-id>",
	Short: "Show a tournament with its participants and bracket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodGet, "/tournaments/"+args[0], nil)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <tournament-id> <player-id>",
	Short: "Register a player",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"player_id": args[1]}
		if seed > 0 {
			body["seed"] = seed
		}
		if displayName != "" {
			body["display_name"] = displayName
		}
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments/"+args[0]+"/participants", body)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <tournament-id>",
	Short: "Close registration and generate the bracket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments/"+args[0]+"/start", nil)
	},
}

var beginCmd = &cobra.Command{
	Use:   "begin <tournament-id> <match-id>",
	Short: "Mark a ready match as in progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments/"+args[0]+"/matches/"+args[1]+"/begin", nil)
	},
}

var resultCmd = &cobra.Command{
	Use:   "result <tournament-id> <match-id> <winner-participant-id>",
	Short: "Record the winner of a match",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := bracket.ParseScore(score)
		if err != nil {
			return err
		}
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments/"+args[0]+"/matches/"+args[1]+"/result", map[string]any{
			"winner_id": args[2],
			"score":     s,
		})
	},
}

var advanceCmd = &cobra.Command{
	Use:   "advance <tournament-id>",
	Short: "Open the next Swiss round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments/"+args[0]+"/advance", nil)
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings <tournament-id>",
	Short: "Show the current standings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodGet, "/tournaments/"+args[0]+"/standings", nil)
	},
}

var placementCmd = &cobra.Command{
	Use:   "placement <tournament-id> <player-id>",
	Short: "Show a player's final placement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodGet, "/tournaments/"+args[0]+"/placements/"+args[1], nil)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <tournament-id>",
	Short: "Cancel a tournament",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(cmd.OutOrStdout(), http.MethodPost, "/tournaments/"+args[0]+"/cancel", nil)
	},
}

// performRequest sends body as JSON and prints the status and response.
// Responses outside 2xx are returned as errors after printing.
func performRequest(out io.Writer, method, endpoint string, body any) error {
	url := host + endpoint

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, respBody, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(respBody)
	}

	fmt.Fprintf(out, "Status Code: %d\n", resp.StatusCode)
	fmt.Fprintln(out, pretty.String())

	if resp.StatusCode >= 300 {
		return fmt.Errorf("server answered %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
