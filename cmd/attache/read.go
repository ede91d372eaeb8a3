package main

import (
	"github.com/spf13/cobra"

	"github.com/lifeos-tools/attache/internal/dispatch"
)

var (
	todayDate    string
	upcomingDays int
	freeMinutes  int
	freeDays     int
	freeDate     string
	freeWholeDay bool
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show the schedule for one day across all calendars",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dispatch.Request{Action: dispatch.ActionGetSchedule, Args: map[string]any{}}
		if todayDate != "" {
			req.Args["date"] = todayDate
		}
		return runAction(cmd.Context(), req)
	},
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Show the next days, grouped by day",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd.Context(), dispatch.Request{
			Action: dispatch.ActionGetUpcoming,
			Args:   map[string]any{"days": upcomingDays},
		})
	},
}

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Compose the morning briefing once and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd.Context(), dispatch.Request{Action: dispatch.ActionGetBriefing})
	},
}

var freeCmd = &cobra.Command{
	Use:   "free",
	Short: "Find open slots of a given length",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dispatch.Request{
			Action: dispatch.ActionFindFree,
			Args: map[string]any{
				"duration_minutes": freeMinutes,
				"days":             freeDays,
			},
		}
		if freeDate != "" {
			req.Args["date"] = freeDate
		}
		if freeWholeDay {
			req.Args["within_hours"] = false
		}
		return runAction(cmd.Context(), req)
	},
}

func init() {
	todayCmd.Flags().StringVar(&todayDate, "date", "", "Day to show (YYYY-MM-DD), defaults to today")
	upcomingCmd.Flags().IntVar(&upcomingDays, "days", 7, "How many days ahead to show")
	freeCmd.Flags().IntVar(&freeMinutes, "minutes", 0, "Slot length in minutes (required)")
	freeCmd.Flags().IntVar(&freeDays, "days", 7, "How many days ahead to search")
	freeCmd.Flags().StringVar(&freeDate, "date", "", "Search a single day (YYYY-MM-DD)")
	freeCmd.Flags().BoolVar(&freeWholeDay, "whole-day", false, "Search the whole day instead of business hours")
	_ = freeCmd.MarkFlagRequired("minutes")
}
