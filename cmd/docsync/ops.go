package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "ops",
	Short:   "Create or upgrade the store schema and documents table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			if err := rt.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		})
	},
}

var typesCmd = &cobra.Command{
	Use:     "types",
	GroupID: "ops",
	Short:   "Manage sync job types",
}

var typesApplyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Create or replace the types defined in a yaml, toml or json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			return applyTypeFile(cmd.Context(), rt.eng, args[0])
		})
	},
}

var typesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync job types",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			types, err := rt.eng.ListTypes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(types)
		})
	},
}

var (
	enqueueType       string
	enqueueSourceType string
	enqueueSource     string
	enqueueContext    string
	enqueueTrigger    string
	enqueueDryRun     bool
)

var enqueueCmd = &cobra.Command{
	Use:     "enqueue",
	GroupID: "ops",
	Short:   "Create a sync job and submit it to its queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := enqueue.Request{
			Type:               enqueueType,
			SourceDocumentType: enqueueSourceType,
			SourceDocumentName: enqueueSource,
			TriggerRef:         enqueueTrigger,
			DryRun:             enqueueDryRun,
		}
		if enqueueContext != "" {
			if err := json.Unmarshal([]byte(enqueueContext), &req.Context); err != nil {
				return fmt.Errorf("--context: %w", err)
			}
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			j, err := rt.eng.Enqueue(cmd.Context(), req)
			if j != nil {
				if perr := printJSON(j); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:     "cancel JOB_ID",
	GroupID: "ops",
	Short:   "Cancel a pending, queued or failed sync job",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := id.ParseSyncJobID(args[0])
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			j, err := rt.eng.Cancel(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return printJSON(j)
		})
	},
}

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	GroupID: "ops",
	Short:   "Inspect sync jobs",
}

var jobsGetCmd = &cobra.Command{
	Use:   "get JOB_ID",
	Short: "Show a sync job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := id.ParseSyncJobID(args[0])
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			j, err := rt.eng.GetJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return printJSON(j)
		})
	},
}

var (
	listStatus string
	listType   string
	listParent string
	listLimit  int
	listOffset int
)

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync jobs, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := syncjob.ListOpts{
			Status: syncjob.Status(listStatus),
			Type:   listType,
			Limit:  listLimit,
			Offset: listOffset,
		}
		if listStatus != "" && !opts.Status.Valid() {
			return fmt.Errorf("unknown status %q", listStatus)
		}
		if listParent != "" {
			parent, err := id.ParseSyncJobID(listParent)
			if err != nil {
				return err
			}
			opts.Parent = parent
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			return listJobs(cmd.Context(), rt, opts)
		})
	},
}

func listJobs(ctx context.Context, rt *runtime, opts syncjob.ListOpts) error {
	jobs, err := rt.eng.ListJobs(ctx, opts)
	if err != nil {
		return err
	}
	return printJSON(jobs)
}

func init() {
	typesCmd.AddCommand(typesApplyCmd, typesListCmd)
	jobsCmd.AddCommand(jobsGetCmd, jobsListCmd)

	f := enqueueCmd.Flags()
	f.StringVar(&enqueueType, "type", "", "sync job type name")
	f.StringVar(&enqueueSourceType, "source-type", "", "source document type (defaults to the type's)")
	f.StringVar(&enqueueSource, "source", "", "source document name (optional)")
	f.StringVar(&enqueueContext, "context", "", "job context as a JSON object")
	f.StringVar(&enqueueTrigger, "trigger", "", "trigger reference recorded on the job")
	f.BoolVar(&enqueueDryRun, "dry-run", false, "compute the diff without saving the target")
	_ = enqueueCmd.MarkFlagRequired("type")

	lf := jobsListCmd.Flags()
	lf.StringVar(&listStatus, "status", "", "filter by status")
	lf.StringVar(&listType, "type", "", "filter by sync job type")
	lf.StringVar(&listParent, "parent", "", "list the children of a relayed job")
	lf.IntVar(&listLimit, "limit", 50, "maximum number of jobs")
	lf.IntVar(&listOffset, "offset", 0, "number of jobs to skip")
}
