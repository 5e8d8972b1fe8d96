package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	socketio "github.com/googollee/go-socket.io"

	"github.com/MingSun-Tse/smilepruning/app"
	"github.com/MingSun-Tse/smilepruning/data"
	"github.com/MingSun-Tse/smilepruning/models"
	"github.com/MingSun-Tse/smilepruning/pruner"
	"github.com/MingSun-Tse/smilepruning/reinit"
	"github.com/MingSun-Tse/smilepruning/smile"
	"github.com/MingSun-Tse/smilepruning/train"

	_ "github.com/MingSun-Tse/smilepruning/methods"
)

func main() {
	name := flag.String("name", "exp", "experiment name")
	arch := flag.String("arch", "lenet5", "model architecture")
	dataset := flag.String("dataset", "synthetic", "synthetic, mnist, or a labeled image directory")
	dataDir := flag.String("data-dir", "./data", "where dataset files live (downloaded if missing)")
	imgSize := flag.Int("img-size", 32, "resize target for image directory datasets")
	base := flag.String("base", "", "checkpoint to start from instead of a fresh model")
	resume := flag.String("resume", "", "checkpoint to resume finetuning from, skipping the prune stage")
	seed := flag.Int64("seed", 42, "seed for init, pruning, and data order")

	method := flag.String("method", "L1", "pruning method, empty to skip pruning")
	wg := flag.String("wg", "filter", "weight group: filter or weight")
	keepRatio := flag.Float64("keep-ratio", 0.5, "global keep ratio")
	keepRatios := flag.String("keep-ratios", "", "per-layer keep ratio overrides as JSON")
	score := flag.String("score", "l1", "importance score: l1 or l2")
	pick := flag.String("pick", "min", "cluster score aggregation: min or mean")
	reinitStrategy := flag.String("reinit", "", "reinit after pruning: default, orth, exact_isometry, approximate_isometry")
	lrAI := flag.Float64("lr-ai", 0.001, "approximate isometry learning rate")
	nIterAI := flag.Int("n-iter-ai", 10000, "approximate isometry iterations")
	aiOptim := flag.String("ai-optim", "persistent", "approximate isometry optimizer policy: persistent or reset")
	regIters := flag.Int("reg-iters", 800, "GReg regularization iterations")
	regGranularity := flag.Int("reg-granularity", 10, "GReg iterations between penalty increases")
	regDelta := flag.Float64("reg-delta", 1e-4, "GReg penalty increase step")

	epochs := flag.Int("epochs", 10, "finetune epochs")
	batchSize := flag.Int("batch-size", 16, "finetune batch size")
	lr := flag.Float64("lr", 0.01, "finetune base learning rate")
	lrSchedule := flag.String("lr-schedule", "", "epoch:lr milestones, e.g. 0:0.01,30:0.001")
	solverName := flag.String("solver", "sgd", "finetune solver: sgd or adam")
	momentum := flag.Float64("momentum", 0.9, "sgd momentum")
	weightDecay := flag.Float64("weight-decay", 0, "weight decay")
	orthReg := flag.Float64("orth-reg", 0, "orthogonality penalty factor during finetune")
	jsvSamples := flag.Int("jsv", 0, "samples for Jacobian singular value diagnostics, 0 to skip")
	jsvRandData := flag.Bool("jsv-rand-data", false, "run JSV diagnostics on random data instead of the validation set")

	dbPath := flag.String("db", "./smilepruning.sqlite3", "experiment database path")
	ckptDir := flag.String("ckpt-dir", "./checkpoints", "checkpoint directory")
	addr := flag.String("addr", "", "if set, serve the experiment API on this address while running")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	smile.SeedRand()

	app.Config.Addr = *addr
	app.Config.DBPath = *dbPath
	app.Config.CheckpointDir = *ckptDir
	app.InitDB(app.Config.DBPath)
	app.MarkDeadRuns()
	if err := os.MkdirAll(*ckptDir, 0755); err != nil {
		log.Fatalf("create %s: %v", *ckptDir, err)
	}

	trainSet, valSet, err := loadDataset(*dataset, *dataDir, *imgSize, *seed)
	if err != nil {
		log.Fatalf("load dataset %s: %v", *dataset, err)
	}
	log.Printf("[main] dataset %s: %d train, %d val, %d classes",
		*dataset, trainSet.Len(), valSet.Len(), trainSet.Classes)

	params := pruner.Params{
		Method:         *method,
		WG:             *wg,
		KeepRatio:      *keepRatio,
		Score:          *score,
		Pick:           *pick,
		Reinit:         *reinitStrategy,
		LRAI:           *lrAI,
		NIterAI:        *nIterAI,
		AIOptim:        *aiOptim,
		Seed:           *seed,
		RegIters:       *regIters,
		RegGranularity: *regGranularity,
		RegDelta:       *regDelta,
	}
	if *keepRatios != "" {
		smile.JsonUnmarshal([]byte(*keepRatios), &params.KeepRatios)
	}

	var m *smile.Model
	var resumeCkpt *smile.Checkpoint
	if *resume != "" {
		resumeCkpt, err = train.LoadCheckpoint(*resume)
		if err != nil {
			log.Fatalf("resume %s: %v", *resume, err)
		}
		m = resumeCkpt.Model
		log.Printf("[main] resuming %s from epoch %d (acc1 %.4f)", *resume, resumeCkpt.Epoch+1, resumeCkpt.Acc1)
	} else {
		m, err = baseModel(*base, *arch, trainSet, *seed)
		if err != nil {
			log.Fatalf("build model: %v", err)
		}
	}
	flops, err := m.CountFlops()
	if err != nil {
		log.Fatalf("count flops: %v", err)
	}
	log.Printf("[main] model %s: %d params, %d flops", m.Arch, m.CountParams(), flops)

	runMethod := *method
	if resumeCkpt != nil {
		runMethod = resumeCkpt.PruneState
	}
	run := app.NewRun(*name, m.Arch, trainSet.Name, runMethod, string(smile.JsonMarshal(params)))
	log.Printf("[main] run %s", run.ID)
	if *addr != "" {
		go serve(*addr)
	}

	if err := pipeline(run, m, trainSet, valSet, params, pipelineOptions{
		Method:      *method,
		Resume:      resumeCkpt,
		Epochs:      *epochs,
		BatchSize:   *batchSize,
		LR:          *lr,
		LRSchedule:  *lrSchedule,
		Solver:      *solverName,
		Momentum:    *momentum,
		WeightDecay: *weightDecay,
		OrthReg:     *orthReg,
		JSVSamples:  *jsvSamples,
		JSVRandData: *jsvRandData,
		CkptDir:     *ckptDir,
		Seed:        *seed,
	}); err != nil {
		run.SetError(err.Error())
		log.Fatalf("run %s: %v", run.ID, err)
	}
	run.SetDone()
	app.SetKV("last_run_id", run.ID)
	log.Printf("[main] run %s done", run.ID)
}

func loadDataset(name string, dataDir string, imgSize int, seed int64) (*data.Dataset, *data.Dataset, error) {
	switch name {
	case "synthetic":
		// 16x16 keeps every registered architecture valid, lenet5 included
		return data.Synthetic(10, 64, 1, 16, seed), data.Synthetic(10, 16, 1, 16, seed+1), nil
	case "mnist":
		if err := data.DownloadMNIST(dataDir); err != nil {
			return nil, nil, err
		}
		return data.LoadMNIST(dataDir)
	default:
		ds, err := data.LoadImageDir(name, imgSize)
		if err != nil {
			return nil, nil, err
		}
		trainSet, valSet := data.Split(ds, 0.8, seed)
		return trainSet, valSet, nil
	}
}

func baseModel(base string, arch string, ds *data.Dataset, seed int64) (*smile.Model, error) {
	if base != "" {
		ckpt, err := train.LoadCheckpoint(base)
		if err != nil {
			return nil, err
		}
		log.Printf("[main] loaded %s (epoch %d, acc1 %.4f)", base, ckpt.Epoch, ckpt.Acc1)
		return ckpt.Model, nil
	}
	m, err := models.Build(arch, models.DataInfo{
		InChannels: ds.InChannels,
		ImgSize:    ds.ImgSize,
		Classes:    ds.Classes,
	})
	if err != nil {
		return nil, err
	}
	if err := reinit.Reinit(m, reinit.Options{Strategy: "default", Seed: seed}); err != nil {
		return nil, err
	}
	return m, nil
}

type pipelineOptions struct {
	Method      string
	Resume      *smile.Checkpoint
	Epochs      int
	BatchSize   int
	LR          float64
	LRSchedule  string
	Solver      string
	Momentum    float64
	WeightDecay float64
	OrthReg     float64
	JSVSamples  int
	JSVRandData bool
	CkptDir     string
	Seed        int64
}

func pipeline(run *app.DBRun, m *smile.Model, trainSet *data.Dataset, valSet *data.Dataset,
	params pruner.Params, opts pipelineOptions) error {

	valLoader := data.NewLoader(valSet, false, 0)

	var plan *smile.PruningPlan
	if opts.Resume != nil {
		plan = opts.Resume.Plan
	} else if opts.Method != "" {
		p, err := pruner.Get(opts.Method, params)
		if err != nil {
			return err
		}
		res, err := p.Prune(m)
		if err != nil {
			return err
		}
		red, err := smile.Reductions(m, res.Model)
		if err != nil {
			return err
		}
		log.Printf("[main] pruned: params %d -> %d (compression %.2fx), flops %d -> %d (speedup %.2fx)",
			red.ParamsBefore, red.ParamsAfter, red.Compression,
			red.FlopsBefore, red.FlopsAfter, red.Speedup)
		m = res.Model
		plan = res.Plan

		acc1, acc5 := train.Validate(m, valLoader)
		log.Printf("[main] after prune: acc1 %.4f acc5 %.4f", acc1, acc5)
		app.LogMetric(run.ID, -1, "acc1", acc1)
		if err := saveCheckpoint(run, m, plan, nil, "just_finished_prune", -1, acc1, acc5, opts); err != nil {
			return err
		}
	}
	jsvLoader := train.Loader(valLoader)
	if opts.JSVRandData && opts.JSVSamples > 0 {
		perClass := (opts.JSVSamples + valSet.Classes - 1) / valSet.Classes
		jsvLoader = data.NewLoader(data.Synthetic(valSet.Classes, perClass, valSet.InChannels, valSet.ImgSize, opts.Seed+2), false, 0)
	}
	if opts.JSVSamples > 0 {
		train.JSV(m, jsvLoader, opts.JSVSamples)
	}
	if opts.Epochs <= 0 {
		return nil
	}

	var solver train.Solver
	var err error
	if opts.Resume != nil {
		solver, err = train.RestoreSolver(opts.Resume, opts.Solver, opts.Momentum, opts.WeightDecay)
	} else {
		solver, err = train.NewSolver(opts.Solver, opts.Momentum, opts.WeightDecay)
	}
	if err != nil {
		return err
	}
	schedule, err := train.ParseLRSchedule(opts.LRSchedule)
	if err != nil {
		return err
	}
	var mask smile.Mask
	if plan != nil && len(plan.Mask) > 0 {
		mask = plan.Mask
	}

	startEpoch := 0
	if opts.Resume != nil {
		startEpoch = opts.Resume.Epoch + 1
	}
	var best train.EpochStats
	var bestModel *smile.Model
	_, err = train.Finetune(m, data.NewLoader(trainSet, true, opts.Seed), valLoader, train.FinetuneOptions{
		Epochs:        opts.Epochs,
		BatchSize:     opts.BatchSize,
		StartEpoch:    startEpoch,
		LR:            opts.LR,
		Schedule:      schedule,
		Solver:        solver,
		Mask:          mask,
		OrthRegFactor: opts.OrthReg,
		OnEpoch: func(stats train.EpochStats) {
			app.LogMetric(run.ID, stats.Epoch, "loss", stats.Loss)
			app.LogMetric(run.ID, stats.Epoch, "acc1", stats.Acc1)
			app.LogMetric(run.ID, stats.Epoch, "acc5", stats.Acc5)
			if opts.JSVSamples > 0 {
				jsv := train.JSV(m, jsvLoader, opts.JSVSamples)
				app.LogMetric(run.ID, stats.Epoch, "jsv_mean", jsv.Mean)
			}
			if bestModel == nil || stats.Acc1 > best.Acc1 {
				best = stats
				bestModel = m.Clone()
			}
		},
	})
	if err != nil {
		return err
	}

	acc1, acc5 := train.Validate(m, valLoader)
	if err := saveCheckpoint(run, m, plan, solver, "last", opts.Epochs-1, acc1, acc5, opts); err != nil {
		return err
	}
	if bestModel != nil {
		if err := saveCheckpoint(run, bestModel, plan, nil, "best", best.Epoch, best.Acc1, best.Acc5, opts); err != nil {
			return err
		}
	}
	return nil
}

func saveCheckpoint(run *app.DBRun, m *smile.Model, plan *smile.PruningPlan, solver train.Solver,
	mark string, epoch int, acc1 float64, acc5 float64, opts pipelineOptions) error {

	ckpt := &smile.Checkpoint{
		Arch:  m.Arch,
		RunID: run.ID,
		Mark:  mark,
		Epoch: epoch,
		Acc1:  acc1,
		Acc5:  acc5,
		Model: m,
		Plan:  plan,
	}
	if plan != nil {
		ckpt.PruneState = run.Method
	}
	if solver != nil {
		ckpt.Solver = solver.State()
	}
	fname := filepath.Join(opts.CkptDir, fmt.Sprintf("%s-%s.json", run.ID, mark))
	if err := train.SaveCheckpoint(fname, ckpt); err != nil {
		return err
	}
	run.RecordCheckpoint(smile.CheckpointInfo{
		Mark: mark, Epoch: epoch, Acc1: acc1, Acc5: acc5, Fname: fname,
	})
	log.Printf("[main] saved %s", fname)
	return nil
}

func serve(addr string) {
	server, err := socketio.NewServer(nil)
	if err != nil {
		panic(err)
	}
	server.OnConnect("/", func(s socketio.Conn) error {
		return nil
	})
	for _, f := range app.SetupFuncs {
		f(server)
	}
	go server.Serve()
	defer server.Close()
	http.Handle("/socket.io/", server)
	http.Handle("/", app.Router)
	log.Printf("serving on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		panic(err)
	}
}
