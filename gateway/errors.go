package gateway

import "fmt"

// Stage names a provisioning step.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageClone   Stage = "clone"
	StageRecipe  Stage = "recipe"
	StageBuild   Stage = "build"
	StageStart   Stage = "start"
	StageBridge  Stage = "bridge"
)

// ProvisionError reports the failed stage and wraps the component error.
type ProvisionError struct {
	Stage Stage
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed at %v: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}
