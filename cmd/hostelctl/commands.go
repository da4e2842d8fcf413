package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/hostel-bed-allocation/internal/allocation"
	"github.com/iliyamo/hostel-bed-allocation/internal/blob"
	"github.com/iliyamo/hostel-bed-allocation/internal/config"
	"github.com/iliyamo/hostel-bed-allocation/internal/database"
	"github.com/iliyamo/hostel-bed-allocation/internal/lifecycle"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

// opener returns a migrated database.  Tests swap it for a temp sqlite file.
var opener = func(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(config.LoadDBConfig())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hostelctl",
		Short:        "Operate the hostel bed allocation service",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newCreateAdminCmd(),
		newPurgeCmd(),
		newRoomsCmd(),
		newReleaseCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opener(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", db.Dialect)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	h := config.LoadHostelConfig()
	var rooms, beds int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed rooms and beds when the inventory is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opener(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := database.Seed(cmd.Context(), db, rooms, beds)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "inventory already present, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rooms with %d beds each\n", n, beds)
			return nil
		},
	}
	cmd.Flags().IntVar(&rooms, "rooms", h.Rooms, "number of rooms")
	cmd.Flags().IntVar(&beds, "beds-per-room", h.BedsPerRoom, "beds in each room (max 26)")
	return cmd
}

// passwordReader prompts for a password.  Piped input is read as a single
// line so scripts can provision accounts.
var passwordReader = func(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(pw)), nil
	}
	raw, err := io.ReadAll(io.LimitReader(in, 1024))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.SplitN(string(raw), "\n", 2)[0]), nil
}

func newCreateAdminCmd() *cobra.Command {
	var (
		email string
		role  string
		cost  int
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an account that can sign in to the admin dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" || !strings.Contains(email, "@") {
				return fmt.Errorf("a valid --email is required")
			}
			role = strings.ToUpper(strings.TrimSpace(role))
			if role != model.RoleAdmin && role != model.RoleStudent {
				return fmt.Errorf("unknown role %q", role)
			}
			pw, err := passwordReader(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if len(pw) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			db, err := opener(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := repository.NewUserRepo(db).Create(cmd.Context(), email, pw, role, cost)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (id %d)\n", role, email, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", model.RoleAdmin, "ADMIN or STUDENT")
	cmd.Flags().IntVar(&cost, "bcrypt-cost", 12, "bcrypt cost")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete recycle-bin bookings older than the retention period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := opener(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			blobs, err := blob.Open(ctx, config.LoadBlobConfig())
			if err != nil {
				return err
			}
			ctl := lifecycle.New(lifecycle.Deps{
				Beds:     allocation.NewService(repository.NewBedRepo(db), nil),
				Bookings: repository.NewBookingRepo(db),
				Blobs:    blobs,
			})
			n, err := ctl.PurgeExpired(ctx, olderThan)
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d booking(s)\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", config.LoadHostelConfig().RecycleRetention, "retention period")
	return cmd
}

func newRoomsCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Print the floor plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opener(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			svc := allocation.NewService(repository.NewBedRepo(db), nil)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			if !detailed {
				rooms, err := svc.Rooms(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ROOM\tFREE\tTOTAL\tSTATUS")
				for _, r := range rooms {
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.RoomNumber, r.FreeBeds, r.TotalBeds, r.Status)
				}
				return nil
			}
			rooms, err := svc.RoomsDetailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "BED\tROOM\tSTATUS")
			for _, r := range rooms {
				for _, b := range r.Beds {
					fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.RoomNumber, b.Status)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "beds", false, "list every bed")
	return cmd
}

// newReleaseCmd frees beds left claimed after the server gave up retrying a
// release.
func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release BED_ID...",
		Short: "Mark beds free, e.g. after a release the server could not complete",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opener(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			svc := allocation.NewService(repository.NewBedRepo(db), nil)
			failed, err := svc.ReleaseMany(cmd.Context(), args)
			fmt.Fprintf(cmd.OutOrStdout(), "released %d of %d bed(s)\n", len(args)-len(failed), len(args))
			return err
		},
	}
}
