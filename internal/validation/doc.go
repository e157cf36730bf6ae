// Package validation runs a build's quality gate.
//
// A gate is an ordered list of Validators sharing one read-only
// environment.Environment. The Orchestrator invokes them in order and stops
// at the first failure:
//
//	orch := validation.NewOrchestrator([]validation.Validator{
//	    validation.NewEnforcerValidator(rules...),
//	    validation.NewDependencyValidator(),
//	    validation.NewStyleValidator(),
//	    validation.NewBugPatternValidator(),
//	}, validation.WithLogger(logger))
//
//	report, err := orch.Run(ctx, env)
//
// A failing validator returns one of two error kinds. A *ValidationFailure
// means the tool ran and found problems; an *exec.ExecutionFailure means the
// tool could not run at all. Both fail the gate; Summary tells them apart.
package validation
