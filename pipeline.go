// Package plogger provides the pipeline running the packet logger stages.
package plogger

import (
	"context"
	"sync"
)

// Stage defines the interface for a generic stage.
type Stage interface {
	// Init initializes the stage.
	Init(ctx context.Context) error
	// Run runs the stage until the context is done.
	Run(ctx context.Context)
	// Close closes (forever) the stage.
	Close()
}

// Pipeline represents a generic pipeline.
// It is the entrypoint for the stages.
type Pipeline struct {
	stages []Stage

	initialized int

	wg        *sync.WaitGroup
	cancelRun context.CancelFunc
	isRunning bool
}

// NewPipeline returns a new pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		stages: []Stage{},

		wg: &sync.WaitGroup{},
	}
}

// AddStage adds a stage to the pipeline.
// The order of the stages is important.
func (p *Pipeline) AddStage(stage Stage) {
	if p.isRunning {
		return
	}

	p.stages = append(p.stages, stage)
}

// Init initializes all the stages in order.
// If a stage fails, the stages already initialized are closed
// and the error is returned.
func (p *Pipeline) Init(ctx context.Context) error {
	for _, stage := range p.stages {
		if err := stage.Init(ctx); err != nil {
			p.closeStages()
			return err
		}

		p.initialized++
	}

	return nil
}

// Run runs all the stages.
// It will spawn a goroutine for each stage.
func (p *Pipeline) Run(ctx context.Context) {
	if p.isRunning {
		return
	}
	p.isRunning = true

	ctx, p.cancelRun = context.WithCancel(ctx)

	p.wg.Add(len(p.stages))

	for _, stage := range p.stages {
		go func() {
			defer p.wg.Done()
			stage.Run(ctx)
		}()
	}
}

// Close stops all the stages and closes them.
// It blocks until every stage has returned from Run.
func (p *Pipeline) Close() {
	if p.cancelRun != nil {
		p.cancelRun()
	}

	p.wg.Wait()

	p.closeStages()
}

func (p *Pipeline) closeStages() {
	for i := p.initialized - 1; i >= 0; i-- {
		p.stages[i].Close()
	}

	p.initialized = 0
}
