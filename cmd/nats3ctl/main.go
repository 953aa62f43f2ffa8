// Command nats3ctl is the CLI client for a running nats3 server. Grounded
// on estuary-flow/authn/main.go's go-flags subcommand-tree shape.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/gurre/nats3/cliclient"
	"github.com/gurre/nats3/types"
)

type globalOpts struct {
	Server string `long:"server" description:"nats3 server URL (overrides the local config file)"`
	JSON   bool   `long:"json" description:"render output as JSON instead of a table"`
}

func (g *globalOpts) client() *cliclient.Client {
	return cliclient.New(g.server())
}

func (g *globalOpts) server() string {
	if g.Server != "" {
		return g.Server
	}
	path, err := cliclient.LocalConfigPath()
	if err == nil {
		if cfg, err := cliclient.LoadLocalConfig(path); err == nil && cfg.ServerURL != "" {
			return cfg.ServerURL
		}
	}
	return cliclient.DefaultLocalConfig().ServerURL
}

func (g *globalOpts) format() cliclient.OutputFormat {
	if g.JSON {
		return cliclient.FormatJSON
	}
	path, err := cliclient.LocalConfigPath()
	if err == nil {
		if cfg, err := cliclient.LoadLocalConfig(path); err == nil && cfg.Format != "" {
			return cfg.Format
		}
	}
	return cliclient.FormatTable
}

type storeListCmd struct {
	globalOpts
}

func (c *storeListCmd) Execute(_ []string) error {
	jobs, err := c.client().ListStoreJobs(context.Background())
	if err != nil {
		return err
	}
	return cliclient.WriteStoreJobs(os.Stdout, c.format(), jobs)
}

type storeGetCmd struct {
	globalOpts
	JobID string `long:"job-id" required:"true" description:"store job id"`
}

func (c *storeGetCmd) Execute(_ []string) error {
	job, err := c.client().GetStoreJob(context.Background(), c.JobID)
	if err != nil {
		return err
	}
	return cliclient.WriteStoreJobs(os.Stdout, c.format(), []types.StoreJob{job})
}

type storeStartCmd struct {
	globalOpts
	Name     string `long:"name" required:"true" description:"job name"`
	Stream   string `long:"stream" required:"true" description:"source stream name"`
	Consumer string `long:"consumer" description:"durable consumer name override"`
	Subject  string `long:"subject" required:"true" description:"subject filter to consume"`
	Bucket   string `long:"bucket" required:"true" description:"destination bucket"`
	Prefix   string `long:"prefix" description:"destination key prefix"`
	MaxBytes int64  `long:"bytes-max" default:"10485760" description:"flush a chunk after this many bytes"`
	MaxCount int64  `long:"messages-max" default:"10000" description:"flush a chunk after this many messages"`
	Codec    string `long:"codec" default:"json" description:"chunk codec: json or binary"`
}

func (c *storeStartCmd) Execute(_ []string) error {
	job, err := c.client().CreateStoreJob(context.Background(), types.CreateStoreJob{
		Name: c.Name, Stream: c.Stream, Consumer: c.Consumer, Subject: c.Subject,
		Bucket: c.Bucket, Prefix: c.Prefix,
		Batch: types.Batch{MaxBytes: c.MaxBytes, MaxCount: c.MaxCount},
		Codec: types.Codec(c.Codec),
	})
	if err != nil {
		return err
	}
	return cliclient.WriteStoreJobs(os.Stdout, c.format(), []types.StoreJob{job})
}

type storeJobIDCmd struct {
	globalOpts
	JobID string `long:"job-id" required:"true" description:"store job id"`
}

type storePauseCmd struct{ storeJobIDCmd }

func (c *storePauseCmd) Execute(_ []string) error {
	job, err := c.client().PauseStoreJob(context.Background(), c.JobID)
	if err != nil {
		return err
	}
	return cliclient.WriteStoreJobs(os.Stdout, c.format(), []types.StoreJob{job})
}

type storeResumeCmd struct{ storeJobIDCmd }

func (c *storeResumeCmd) Execute(_ []string) error {
	job, err := c.client().ResumeStoreJob(context.Background(), c.JobID)
	if err != nil {
		return err
	}
	return cliclient.WriteStoreJobs(os.Stdout, c.format(), []types.StoreJob{job})
}

type storeDeleteCmd struct{ storeJobIDCmd }

func (c *storeDeleteCmd) Execute(_ []string) error {
	if err := c.client().DeleteStoreJob(context.Background(), c.JobID); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}

type loadListCmd struct {
	globalOpts
}

func (c *loadListCmd) Execute(_ []string) error {
	jobs, err := c.client().ListLoadJobs(context.Background())
	if err != nil {
		return err
	}
	return cliclient.WriteLoadJobs(os.Stdout, c.format(), jobs)
}

type loadGetCmd struct {
	globalOpts
	JobID string `long:"job-id" required:"true" description:"load job id"`
}

func (c *loadGetCmd) Execute(_ []string) error {
	job, err := c.client().GetLoadJob(context.Background(), c.JobID)
	if err != nil {
		return err
	}
	return cliclient.WriteLoadJobs(os.Stdout, c.format(), []types.LoadJob{job})
}

type loadStartCmd struct {
	globalOpts
	Bucket       string `long:"bucket" required:"true" description:"source bucket"`
	Prefix       string `long:"prefix" description:"source key prefix"`
	ReadStream   string `long:"read-stream" required:"true" description:"metadata filter: stream"`
	ReadConsumer string `long:"read-consumer" description:"metadata filter: consumer"`
	ReadSubject  string `long:"read-subject" required:"true" description:"metadata filter: subject"`
	WriteSubject string `long:"write-subject" required:"true" description:"subject to republish onto"`
	DeleteChunks bool   `long:"delete-chunks" description:"tombstone each chunk after republishing it"`
	PollSeconds  int64  `long:"poll-seconds" description:"repeat the pass every N seconds instead of running once"`
}

func (c *loadStartCmd) Execute(_ []string) error {
	var pollInterval time.Duration
	if c.PollSeconds > 0 {
		pollInterval = time.Duration(c.PollSeconds) * time.Second
	}

	job, err := c.client().CreateLoadJob(context.Background(), types.CreateLoadJob{
		Bucket: c.Bucket, Prefix: c.Prefix, ReadStream: c.ReadStream, ReadConsumer: c.ReadConsumer,
		ReadSubject: c.ReadSubject, WriteSubject: c.WriteSubject, DeleteChunks: c.DeleteChunks,
		PollInterval: pollInterval,
	})
	if err != nil {
		return err
	}
	return cliclient.WriteLoadJobs(os.Stdout, c.format(), []types.LoadJob{job})
}

type loadJobIDCmd struct {
	globalOpts
	JobID string `long:"job-id" required:"true" description:"load job id"`
}

type loadPauseCmd struct{ loadJobIDCmd }

func (c *loadPauseCmd) Execute(_ []string) error {
	job, err := c.client().PauseLoadJob(context.Background(), c.JobID)
	if err != nil {
		return err
	}
	return cliclient.WriteLoadJobs(os.Stdout, c.format(), []types.LoadJob{job})
}

type loadResumeCmd struct{ loadJobIDCmd }

func (c *loadResumeCmd) Execute(_ []string) error {
	job, err := c.client().ResumeLoadJob(context.Background(), c.JobID)
	if err != nil {
		return err
	}
	return cliclient.WriteLoadJobs(os.Stdout, c.format(), []types.LoadJob{job})
}

type loadDeleteCmd struct{ loadJobIDCmd }

func (c *loadDeleteCmd) Execute(_ []string) error {
	if err := c.client().DeleteLoadJob(context.Background(), c.JobID); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}

type configSetCmd struct {
	ServerURL string `long:"server-url" description:"default server URL for future invocations"`
	Format    string `long:"format" description:"default output format: table or json"`
}

func (c *configSetCmd) Execute(_ []string) error {
	path, err := cliclient.LocalConfigPath()
	if err != nil {
		return err
	}
	cfg, err := cliclient.LoadLocalConfig(path)
	if err != nil {
		return err
	}
	if c.ServerURL != "" {
		cfg.ServerURL = c.ServerURL
	}
	if c.Format != "" {
		cfg.Format = cliclient.OutputFormat(c.Format)
	}
	return cliclient.SaveLocalConfig(path, cfg)
}

func main() {
	parser := flags.NewParser(nil, flags.Default)

	store, err := parser.AddCommand("store", "Manage store jobs", "", &struct{}{})
	mustAdd(err)
	mustAdd(addSub(store, "list", "List store jobs", &storeListCmd{}))
	mustAdd(addSub(store, "get", "Get one store job", &storeGetCmd{}))
	mustAdd(addSub(store, "start", "Start a new store job", &storeStartCmd{}))
	mustAdd(addSub(store, "pause", "Pause a store job", &storePauseCmd{}))
	mustAdd(addSub(store, "resume", "Resume a store job", &storeResumeCmd{}))
	mustAdd(addSub(store, "delete", "Delete a store job", &storeDeleteCmd{}))

	load, err := parser.AddCommand("load", "Manage load jobs", "", &struct{}{})
	mustAdd(err)
	mustAdd(addSub(load, "list", "List load jobs", &loadListCmd{}))
	mustAdd(addSub(load, "get", "Get one load job", &loadGetCmd{}))
	mustAdd(addSub(load, "start", "Start a new load job", &loadStartCmd{}))
	mustAdd(addSub(load, "pause", "Pause a load job", &loadPauseCmd{}))
	mustAdd(addSub(load, "resume", "Resume a load job", &loadResumeCmd{}))
	mustAdd(addSub(load, "delete", "Delete a load job", &loadDeleteCmd{}))

	_, err = parser.AddCommand("config", "Set nats3ctl's own defaults", "", &configSetCmd{})
	mustAdd(err)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addSub(parent *flags.Command, name, short string, data interface{}) error {
	_, err := parent.AddCommand(name, short, "", data)
	return err
}

func mustAdd(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
