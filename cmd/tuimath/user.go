package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuimath/internal/model"
)

var (
	userLength  int
	userMax     int
	userOps     string
	userSound   bool
	userHaptics bool
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local profiles",
	}

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreateCmd,
	}
	addPreferenceFlags(createCmd)

	prefsCmd := &cobra.Command{
		Use:   "prefs [NAME]",
		Short: "Show or change practice preferences",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runUserPrefsCmd,
	}
	addPreferenceFlags(prefsCmd)
	prefsCmd.Flags().BoolVar(&userSound, "sound", true, "enable sound feedback")
	prefsCmd.Flags().BoolVar(&userHaptics, "haptics", true, "enable haptic feedback")

	userCmd.AddCommand(createCmd, prefsCmd,
		&cobra.Command{
			Use:   "list",
			Short: "List profiles",
			Args:  cobra.NoArgs,
			RunE:  runUserListCmd,
		},
		&cobra.Command{
			Use:   "use NAME",
			Short: "Switch the current profile",
			Args:  cobra.ExactArgs(1),
			RunE:  runUserUseCmd,
		},
		&cobra.Command{
			Use:   "rename NAME NEW_NAME",
			Short: "Rename a profile",
			Args:  cobra.ExactArgs(2),
			RunE:  runUserRenameCmd,
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a profile and its sessions",
			Args:  cobra.ExactArgs(1),
			RunE:  runUserDeleteCmd,
		},
	)
	return userCmd
}

func addPreferenceFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&userLength, "length", 0, "problems per session")
	cmd.Flags().IntVar(&userMax, "max", 0, "largest operand")
	cmd.Flags().StringVar(&userOps, "ops", "", "enabled operations, e.g. add,sub,mul,div")
}

func runUserCreateCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	prefs := a.settings.Preferences
	patch, _, err := preferenceFlags(cmd, "length", "max", "ops")
	if err != nil {
		return err
	}
	mergePreferencesPatch(&prefs, patch)

	user, err := a.store.CreateUser(model.CreateUserInput{Name: args[0], Preferences: &prefs})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", user.Name, user.ID)
	return err
}

func runUserListCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	users := a.store.ListUsers()
	if len(users) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No users yet.")
		return err
	}
	current, _ := a.store.CurrentUser()
	for _, u := range users {
		marker := " "
		if u.ID == current.ID {
			marker = "*"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%d sessions\t%.0f%%\n",
			marker, u.Name, u.Statistics.TotalSessionsCompleted, u.Statistics.AverageAccuracy*100); err != nil {
			return err
		}
	}
	return nil
}

func runUserUseCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.resolveUser(args[0], false)
	if err != nil {
		return err
	}
	return a.store.SetCurrentUser(user.ID)
}

func runUserRenameCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.resolveUser(args[0], false)
	if err != nil {
		return err
	}
	name := args[1]
	_, err = a.store.UpdateUser(user.ID, model.UserPatch{Name: &name})
	return err
}

func runUserDeleteCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.resolveUser(args[0], false)
	if err != nil {
		return err
	}
	if err := a.store.DeleteUser(user.ID); err != nil {
		return err
	}
	a.logger.Info("user deleted", "user", user.ID)
	return nil
}

func runUserPrefsCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	user, err := a.resolveUser(name, false)
	if err != nil {
		return err
	}
	patch, changed, err := preferenceFlags(cmd, "length", "max", "ops")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("sound") {
		patch.SoundEnabled = &userSound
		changed = true
	}
	if cmd.Flags().Changed("haptics") {
		patch.HapticsEnabled = &userHaptics
		changed = true
	}
	if changed {
		if user, err = a.store.UpdateUser(user.ID, model.UserPatch{Preferences: &patch}); err != nil {
			return err
		}
	}
	return printPreferences(cmd, user)
}

func printPreferences(cmd *cobra.Command, user model.User) error {
	p := user.Preferences
	ops := make([]string, 0, 4)
	for _, op := range p.Operations.Enabled() {
		ops = append(ops, op.Symbol())
	}
	lines := []string{
		fmt.Sprintf("Preferences for %s", user.Name),
		fmt.Sprintf("Operations: %s", strings.Join(ops, " ")),
		fmt.Sprintf("Session length: %d", p.SessionLength),
		fmt.Sprintf("Max number: %d", p.MaxNumber),
		fmt.Sprintf("Sound: %t", p.SoundEnabled),
		fmt.Sprintf("Haptics: %t", p.HapticsEnabled),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return err
		}
	}
	return nil
}

// mergePreferencesPatch copies the set fields of src over dst.
func mergePreferencesPatch(dst *model.PreferencesPatch, src model.PreferencesPatch) {
	if src.Operations != nil {
		dst.Operations = src.Operations
	}
	if src.SessionLength != nil {
		dst.SessionLength = src.SessionLength
	}
	if src.MaxNumber != nil {
		dst.MaxNumber = src.MaxNumber
	}
	if src.SoundEnabled != nil {
		dst.SoundEnabled = src.SoundEnabled
	}
	if src.HapticsEnabled != nil {
		dst.HapticsEnabled = src.HapticsEnabled
	}
}
