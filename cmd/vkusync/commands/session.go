package commands

import (
	"errors"
	"fmt"
	"os"
	"vkusync-backend/internal/session"
	"vkusync-backend/pkg/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	sessionCmd.AddCommand(sessionCheckCmd, sessionShowCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

// the session commands only touch the session directory, they never open the record store
func sessionStore() session.Store {
	return session.NewStore(readConfig().Session.Dir)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspects or deletes the saved browser session.",
}

var sessionCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Prints whether a session is saved and its size.",
	Run: func(cmd *cobra.Command, args []string) {
		sessions := sessionStore()
		info := sessions.Stat(sessions.PathFor(*owner))
		if !info.Exists {
			fmt.Printf("no session at %s\n", info.Path)
			os.Exit(1)
		}
		fmt.Printf("session at %s (%d bytes)\n", info.Path, *info.Size)
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the saved session file.",
	Run: func(cmd *cobra.Command, args []string) {
		sessions := sessionStore()
		raw, err := sessions.Raw(sessions.PathFor(*owner))
		if errors.Is(err, session.ErrSessionMissing) {
			fmt.Fprintln(os.Stderr, "no session saved")
			os.Exit(1)
		}
		if err != nil {
			serviceutil.Fatal("failed to read session", err)
		}
		fmt.Println(string(raw))
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Deletes the saved session.",
	Run: func(cmd *cobra.Command, args []string) {
		sessions := sessionStore()
		path := sessions.PathFor(*owner)
		deleted, err := sessions.Delete(path)
		if err != nil {
			serviceutil.Fatal("failed to delete session", err)
		}
		if !deleted {
			fmt.Printf("no session at %s\n", path)
			return
		}
		fmt.Printf("deleted %s\n", path)
	},
}
