package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okabe/favcrawl/internal/catalog"
	"github.com/okabe/favcrawl/internal/store"
)

// newWorksCmd creates the 'works' subcommand for inspecting and editing
// stored works without a crawl.
func newWorksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "works",
		Short: "Inspects and edits stored works",
	}
	cmd.AddCommand(newWorksListCmd())
	cmd.AddCommand(newWorksEditCmd())
	return cmd
}

func newWorksListCmd() *cobra.Command {
	var (
		scope   string
		subject string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists stored works for one subject",

		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}

			st, err := store.New(cmd.Context(), rt.Config.DB.DSN)
			if err != nil {
				return err
			}
			defer st.Close()

			works, err := st.WorksBySubject(cmd.Context(), catalog.NormalizeScope(scope), subject)
			if err != nil {
				return err
			}
			if len(works) == 0 {
				cmd.Println("no works stored")
				return nil
			}
			for _, work := range works {
				cmd.Printf("%-16s %s\n", work.Code, work.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "actor", "collection scope")
	cmd.Flags().StringVar(&subject, "subject", "", "subject name")
	return cmd
}

func newWorksEditCmd() *cobra.Command {
	var (
		scope    string
		subject  string
		code     string
		newCode  string
		newTitle string
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edits one stored work's code and title",

		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if subject == "" || code == "" {
				return fmt.Errorf("--subject and --code are required")
			}
			if newCode == "" {
				newCode = code
			}

			st, err := store.New(cmd.Context(), rt.Config.DB.DSN)
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.UpdateWork(cmd.Context(), catalog.NormalizeScope(scope), subject, code, newCode, newTitle)
			if err != nil {
				return err
			}
			cmd.Printf("updated %s -> %s\n", code, newCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "actor", "collection scope")
	cmd.Flags().StringVar(&subject, "subject", "", "subject name")
	cmd.Flags().StringVar(&code, "code", "", "current work code")
	cmd.Flags().StringVar(&newCode, "new-code", "", "replacement code (defaults to current)")
	cmd.Flags().StringVar(&newTitle, "new-title", "", "replacement title")
	return cmd
}
