package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
)

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func blockCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block <date>",
		Short: "Block a date for all bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			category, _ := cmd.Flags().GetString("category")
			by, _ := cmd.Flags().GetString("by")

			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			b, err := svc.SetBlockedDate(cmd.Context(), appointment.BlockedDateRequest{
				Date:     date,
				Reason:   reason,
				Category: category,
				Active:   true,
				Actor:    by,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, b)
		},
	}
	cmd.Flags().String("reason", "", "Reason shown to staff (required)")
	cmd.Flags().String("category", "Lain-lain", "Block category")
	cmd.Flags().String("by", "clinicctl", "Admin performing the change")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func unblockCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unblock <date>",
		Short: "Lift the active block on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}
			by, _ := cmd.Flags().GetString("by")

			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			b, err := svc.SetBlockedDate(cmd.Context(), appointment.BlockedDateRequest{Date: date, Active: false, Actor: by})
			if err != nil {
				return err
			}
			return printJSON(cmd, b)
		},
	}
	cmd.Flags().String("by", "clinicctl", "Admin performing the change")
	return cmd
}

func blockedCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List blocked dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			dates, err := svc.ListBlockedDates(cmd.Context(), !all)
			if err != nil {
				return err
			}
			if dates == nil {
				dates = []appointment.BlockedDate{}
			}
			return printJSON(cmd, dates)
		},
	}
	cmd.Flags().Bool("all", false, "Include lifted blocks")
	return cmd
}

func slotsCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect or replace a case type's slot catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <case-type>",
		Short: "Print the slot catalog of a case type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			defs, err := svc.ListSlots(cmd.Context(), appointment.CaseType(args[0]))
			if err != nil {
				return err
			}
			if defs == nil {
				defs = []appointment.SlotDefinition{}
			}
			return printJSON(cmd, defs)
		},
	})

	setCmd := &cobra.Command{
		Use:   "set <case-type>",
		Short: "Replace the slot catalog of a case type from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			by, _ := cmd.Flags().GetString("by")

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			var defs []appointment.SlotDefinition
			if err := json.Unmarshal(raw, &defs); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			stored, err := svc.UpsertSlotCatalog(cmd.Context(), appointment.CaseType(args[0]), defs, by)
			if err != nil {
				return err
			}
			return printJSON(cmd, stored)
		},
	}
	setCmd.Flags().String("file", "", "JSON array of slot definitions")
	setCmd.Flags().String("by", "clinicctl", "Admin performing the change")
	_ = setCmd.MarkFlagRequired("file")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Install the default catalog for every case type",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			for caseType, defs := range appointment.DefaultSlotCatalog() {
				if _, err := svc.UpsertSlotCatalog(cmd.Context(), caseType, defs, "clinicctl"); err != nil {
					return fmt.Errorf("%s: %w", caseType, err)
				}
			}
			types, err := svc.CaseTypes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, types)
		},
	})

	return cmd
}

func availabilityCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "availability <date> <case-type>",
		Short: "Show the bookable options of a case type on a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}

			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			avail, err := svc.Resolve(cmd.Context(), date, appointment.CaseType(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd, avail)
		},
	}
}

func markMissedCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-missed",
		Short: "Mark overdue pending appointments as Tidak Hadir",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.MarkMissed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d appointment(s) as missed.\n", n)
			return nil
		},
	}
}
