package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourusername/hfcache-go/internal/app"
	"github.com/yourusername/hfcache-go/internal/domain"
)

const pollInterval = time.Second

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "hfcache",
		Short: "hfcache CLI - inspect and manage a local model cache",
		Long:  `A command-line interface for the hfcache server: cache statistics, downloads and removals.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:5000", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	downloadCmd.Flags().BoolP("wait", "w", false, "Poll progress until the download finishes")
	clearCmd.Flags().BoolP("yes", "y", false, "Skip confirmation")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing this text")
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries")
	logsCmd.Flags().String("date", "", "Log date (YYYY-MM-DD), defaults to today")
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// call sends a request and decodes the JSON reply into out. Non-2xx replies
// are turned into an error carrying the server's message.
func call(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error         string   `json:"error"`
			FailedFolders []string `json:"failed_folders"`
			Candidates    []string `json:"candidates"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg := apiErr.Error
			if len(apiErr.Candidates) > 0 {
				msg += "\ncandidates: " + strings.Join(apiErr.Candidates, ", ")
			}
			return fmt.Errorf("%s (HTTP %d)", msg, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type statsReply struct {
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"size_formatted"`
	Folders       int       `json:"folders"`
	Files         int       `json:"files"`
	LastUpdated   time.Time `json:"last_updated"`
	Partial       bool      `json:"partial"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var stats statsReply
		exitOnError(call(http.MethodGet, "/api/cache/stats", nil, &stats))

		fmt.Println("Cache Statistics:")
		fmt.Printf("  Size:         %s (%d bytes)\n", stats.SizeFormatted, stats.Size)
		fmt.Printf("  Folders:      %d\n", stats.Folders)
		fmt.Printf("  Files:        %d\n", stats.Files)
		fmt.Printf("  Last updated: %s\n", stats.LastUpdated.Local().Format(time.RFC3339))
		if stats.Partial {
			fmt.Println("  (scan timed out, totals are partial)")
		}
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List cached files",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var reply struct {
			Files []struct {
				Path          string     `json:"path"`
				SizeFormatted string     `json:"size_formatted"`
				LastAccessed  *time.Time `json:"last_accessed"`
				Folder        string     `json:"folder"`
			} `json:"files"`
			TotalCount int `json:"total_count"`
		}
		exitOnError(call(http.MethodGet, "/api/cache/files", nil, &reply))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FOLDER\tSIZE\tLAST ACCESSED\tPATH")
		for _, f := range reply.Files {
			accessed := "-"
			if f.LastAccessed != nil {
				accessed = f.LastAccessed.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Folder, f.SizeFormatted, accessed, f.Path)
		}
		w.Flush()
		fmt.Printf("%d file(s)\n", reply.TotalCount)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [repo_id] [filename]",
	Short: "Download one file from a repository into the cache",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		wait, _ := cmd.Flags().GetBool("wait")

		var reply struct {
			DownloadID string `json:"download_id"`
			Message    string `json:"message"`
		}
		payload := map[string]string{"repo_id": args[0], "filename": args[1]}
		exitOnError(call(http.MethodPost, "/api/cache/download", payload, &reply))

		fmt.Printf("%s\n", reply.Message)
		fmt.Printf("ID: %s\n", reply.DownloadID)

		if !wait {
			return
		}

		download := waitForDownload(reply.DownloadID)
		switch download.Status {
		case domain.StatusCompleted:
			fmt.Printf("Completed: %s\n", download.FilePath)
		case domain.StatusFailed:
			fmt.Fprintf(os.Stderr, "Failed: %s\n", download.Error)
			os.Exit(1)
		default:
			fmt.Printf("Download %s\n", download.Status)
		}
	},
}

// waitForDownload polls the progress endpoint until the download finishes
func waitForDownload(id string) *domain.Download {
	last := -1
	for {
		var download domain.Download
		exitOnError(call(http.MethodGet, "/api/cache/download/"+url.PathEscape(id)+"/progress", nil, &download))

		if download.Progress != last {
			fmt.Printf("\r%-9s %3d%%", download.Status, download.Progress)
			last = download.Progress
		}
		if download.IsTerminal() {
			fmt.Println()
			return &download
		}
		time.Sleep(pollInterval)
	}
}

var progressCmd = &cobra.Command{
	Use:   "progress [id]",
	Short: "Show the progress of a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var d domain.Download
		exitOnError(call(http.MethodGet, "/api/cache/download/"+url.PathEscape(args[0])+"/progress", nil, &d))

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", d.ID)
		fmt.Printf("  Repo:     %s\n", d.RepoID)
		fmt.Printf("  File:     %s\n", d.Filename)
		fmt.Printf("  Status:   %s\n", d.Status)
		fmt.Printf("  Progress: %d%%\n", d.Progress)
		fmt.Printf("  Started:  %s\n", d.StartTime.Local().Format(time.RFC3339))
		if d.EndTime != nil {
			fmt.Printf("  Ended:    %s\n", d.EndTime.Local().Format(time.RFC3339))
		}
		if d.FilePath != "" {
			fmt.Printf("  Path:     %s\n", d.FilePath)
		}
		if d.Error != "" {
			fmt.Printf("  Error:    %s\n", d.Error)
		}
	},
}

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List downloads known to the server",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var reply struct {
			Downloads []domain.Download `json:"downloads"`
		}
		exitOnError(call(http.MethodGet, "/api/cache/downloads", nil, &reply))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREPO\tFILE\tSTATUS\tPROGRESS\tSTARTED")
		for _, d := range reply.Downloads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
				truncate(d.ID, 8),
				truncate(d.RepoID, 30),
				truncate(d.Filename, 30),
				d.Status,
				d.Progress,
				d.StartTime.Local().Format("2006-01-02 15:04:05"))
		}
		w.Flush()
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var reply struct {
			Message string `json:"message"`
		}
		exitOnError(call(http.MethodDelete, "/api/cache/download/"+url.PathEscape(args[0]), nil, &reply))
		fmt.Println(reply.Message)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [repo_name]",
	Short: "Remove a repository from the cache",
	Long:  "Remove a repository folder. Accepts the folder name (owner--name) or just the repository name when it is unambiguous.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var reply struct {
			Message string `json:"message"`
		}
		exitOnError(call(http.MethodDelete, "/api/cache/remove/"+url.PathEscape(args[0]), nil, &reply))
		fmt.Println(reply.Message)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every repository in the cache",
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm("Delete every cached repository?") {
			fmt.Println("Aborted")
			return
		}

		ensureServer()

		var reply struct {
			Message string `json:"message"`
		}
		exitOnError(call(http.MethodPost, "/api/cache/clear", nil, &reply))
		fmt.Println(reply.Message)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show categorized server logs (download, cache, error)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")

		query := url.Values{}
		query.Set("limit", fmt.Sprint(limit))
		if date != "" {
			query.Set("date", date)
		}

		path := "/api/v1/logs/" + url.PathEscape(args[0])
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var reply struct {
			Entries []struct {
				Timestamp string                 `json:"timestamp"`
				Level     string                 `json:"level"`
				Message   string                 `json:"message"`
				Fields    map[string]interface{} `json:"fields"`
			} `json:"entries"`
		}
		exitOnError(call(http.MethodGet, path+"?"+query.Encode(), nil, &reply))

		for _, e := range reply.Entries {
			fields := ""
			if len(e.Fields) > 0 {
				data, _ := json.Marshal(e.Fields)
				fields = " " + string(data)
			}
			fmt.Printf("%s %-5s %s%s\n", e.Timestamp, strings.ToUpper(e.Level), e.Message, fields)
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		if _, err := os.Stat(path); err == nil {
			exitOnError(fmt.Errorf("%s already exists", path))
		}
		exitOnError(app.SaveConfig(domain.DefaultConfig(), path))
		fmt.Printf("Wrote %s\n", path)
	},
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
