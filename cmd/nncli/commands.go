package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"nncli/pkg/config"
	"nncli/pkg/dataProcess"
	"nncli/pkg/network"
	"nncli/pkg/server"
	"nncli/pkg/training"

	"github.com/gin-gonic/gin"
)

const usage = `
nncli [flags] <file> <command> <arguments>

commands:
    make:  generates a neural net & saves it to file
        argument: topology of the net, eg. 1-2-3-4
        eg. nncli net.nn make 2-3-1

    train: loads the net, trains it & saves it
        arguments:
            1) path to training set
            2) epochs (integer)
            3) batch size (integer)
            4) learning rate (decimal)
        epochs, batch size and learning rate default to the [train]
        section of the config file when only the training set is given.
        eg. nncli net.nn train ../path/to/dataset 1000 100 2.5
        dataset format: |-----input------|-output-|
                        0.53, 0.012, 0.99, 0, 1

    feed:  loads the net & propagates an input vector
        argument: input vector, eg. 0.53-0.61-1.0 or 0.53,0.61,1.0
        eg. nncli net.nn feed 0.53-0.61-1.0

    serve: loads the net & serves it over HTTP
        argument: optional listen address, eg. :8080

    help:  prints this message

flags:
`

// errUsage marks errors caused by bad command-line arguments.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

type app struct {
	cfg    *config.Config
	stdout io.Writer
	logger *log.Logger
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nncli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", config.DefaultPath, "Path to TOML config")
	seed := fs.Uint64("seed", 0, "PRNG seed for make (0 = from config or clock)")
	logEvery := fs.Int("log-every", 0, "Log the loss every N epochs while training")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	rest := fs.Args()
	if len(rest) == 1 && rest[0] == "help" {
		fmt.Fprint(stdout, usage)
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}
	if len(rest) < 2 {
		fmt.Fprintln(stderr, "Oops! Bad number of arguments!\nSee 'nncli help'.")
		return 1
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	cfg.ApplyOverrides(config.Overrides{Seed: *seed, LogEvery: *logEvery})

	a := &app{
		cfg:    cfg,
		stdout: stdout,
		logger: log.New(stderr, "", log.LstdFlags),
	}
	file, command, cmdArgs := rest[0], rest[1], rest[2:]
	switch command {
	case "make":
		err = a.makeNetwork(file, cmdArgs)
	case "train":
		err = a.train(file, cmdArgs)
	case "feed":
		err = a.feed(file, cmdArgs)
	case "serve":
		err = a.serve(ctx, file, cmdArgs)
	default:
		err = usageError("unknown action: %s", command)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, "See 'nncli help'.")
		}
		return 1
	}
	return 0
}

func (a *app) makeNetwork(file string, args []string) error {
	if len(args) != 1 {
		return usageError("make takes exactly one topology argument")
	}
	topology, err := dataProcess.ParseTopology(args[0])
	if err != nil {
		return usageError("%v", err)
	}
	seed := a.cfg.Init.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	nn, err := network.NewNeuronNetwork(topology, rand.NewPCG(seed, seed>>1|1))
	if err != nil {
		return err
	}
	if err := nn.Save(file); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created: %s with topology %s\n", file, args[0])
	return nil
}

func (a *app) train(file string, args []string) error {
	opts := training.Options{
		Epochs:       a.cfg.Train.Epochs,
		BatchSize:    a.cfg.Train.BatchSize,
		LearningRate: a.cfg.Train.LearningRate,
		LogEvery:     a.cfg.Train.LogEvery,
	}
	switch len(args) {
	case 1:
	case 4:
		var err error
		if opts.Epochs, err = strconv.Atoi(args[1]); err != nil {
			return usageError("epochs: %v", err)
		}
		if opts.BatchSize, err = strconv.Atoi(args[2]); err != nil {
			return usageError("batch size: %v", err)
		}
		if opts.LearningRate, err = strconv.ParseFloat(args[3], 64); err != nil {
			return usageError("learning rate: %v", err)
		}
	default:
		return usageError("bad number of arguments for 'train' command")
	}
	if err := opts.Validate(); err != nil {
		return usageError("%v", err)
	}

	nn, err := network.Load(file)
	if err != nil {
		return err
	}
	data, err := dataProcess.LoadDataset(args[0], nn.InputSize(), nn.OutputSize())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "\nStarting training with:\n"+
		"\tnet: %s\n\tdataset: %s\n\tepochs: %d\n\tbatch size: %d\n\tlearning rate: %g\n\ttraining set size: %d\n\t....\n",
		file, args[0], opts.Epochs, opts.BatchSize, opts.LearningRate, len(data))

	if _, err := training.TrainModel(nn, data, opts, a.logger); err != nil {
		return err
	}
	if err := nn.Save(file); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Finished!")
	return nil
}

func (a *app) feed(file string, args []string) error {
	if len(args) == 0 {
		return usageError("bad number of arguments for 'feed' command")
	}
	nn, err := network.Load(file)
	if err != nil {
		return err
	}
	input, err := dataProcess.ParseVector(strings.Join(args, " "))
	if err != nil {
		return usageError("%v", err)
	}
	if input.Len() != nn.InputSize() {
		return fmt.Errorf("input vector '%s' is of size %d but '%s' takes input vector of size %d: %w",
			strings.Join(args, " "), input.Len(), file, nn.InputSize(), network.ErrDimensionMismatch)
	}
	output, err := nn.FeedForward(input)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, dataProcess.FormatVector(output, " | "))
	return nil
}

func (a *app) serve(ctx context.Context, file string, args []string) error {
	if len(args) > 1 {
		return usageError("serve takes at most one address argument")
	}
	if len(args) == 1 {
		a.cfg.ApplyOverrides(config.Overrides{Addr: args[0]})
	}
	nn, err := network.Load(file)
	if err != nil {
		return err
	}
	gin.SetMode(a.cfg.Serve.Mode)

	hs := server.NewHTTPServer(a.cfg.Serve.Addr, nn, a.logger)
	errc := make(chan error, 1)
	go func() { errc <- hs.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
