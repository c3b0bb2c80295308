package miniscript

import (
	"fmt"
	"github.com/pkg/errors"
)

// ErrCouldNotSatisfy is returned when no satisfaction exists for the
// data the satisfier has available.
var ErrCouldNotSatisfy = errors.New("could not satisfy miniscript")

// ContextErrorKind enumerates the ways a script can violate the rules of
// the segwit v0 context.
type ContextErrorKind int

const (
	// CompressedOnly is raised for uncompressed keys.
	CompressedOnly ContextErrorKind = iota

	// MaxWitnessScriptSizeExceeded is raised for scripts above the
	// standard witness script size.
	MaxWitnessScriptSizeExceeded

	// MaxScriptSizeExceeded is raised for scripts above the consensus
	// script size.
	MaxScriptSizeExceeded

	// MaxOpCountExceeded is raised when a spending path executes more
	// than 201 non-push opcodes.
	MaxOpCountExceeded

	// MaxWitnessItemsExceeded is raised when a satisfaction needs more
	// witness stack items than standardness allows.
	MaxWitnessItemsExceeded

	// NonTopLevel is raised when a fragment which is not of type B is
	// used as a whole script.
	NonTopLevel

	// ImpossibleSatisfaction is raised for scripts with no satisfaction
	// at all.
	ImpossibleSatisfaction
)

// ContextError reports a rule of the segwit v0 context being violated.
// Detail carries the offending key or fragment, where there is one.
type ContextError struct {
	Kind   ContextErrorKind
	Detail string
}

func (e *ContextError) Error() string {
	switch e.Kind {
	case CompressedOnly:
		return "Only compressed keys allowed in segwit v0 context: " + e.Detail
	case MaxWitnessScriptSizeExceeded:
		return fmt.Sprintf("Script would be larger than the maximum standard witness script size of %d bytes", MaxStandardWitnessScriptSize)
	case MaxScriptSizeExceeded:
		return fmt.Sprintf("Script would be larger than the maximum script size of %d bytes", MaxScriptSize)
	case MaxOpCountExceeded:
		return fmt.Sprintf("At least one spending path has more than %d opcodes", MaxOpsPerScript)
	case MaxWitnessItemsExceeded:
		return fmt.Sprintf("At least one spending path has more than %d witness items", MaxStandardWitnessStackItems)
	case NonTopLevel:
		return "Non top-level type: " + e.Detail
	case ImpossibleSatisfaction:
		return "Impossible to satisfy miniscript under the segwit v0 context"
	default:
		return "unknown context error"
	}
}

// MissingSigError is returned by satisfaction when a signature is needed
// for Key but the satisfier has none.
type MissingSigError struct {
	Key string
}

func (e *MissingSigError) Error() string {
	return "Missing signature for key " + e.Key
}

// AnalysisErrorKind enumerates the reasons a script is not sane.
type AnalysisErrorKind int

const (
	SiglessBranch AnalysisErrorKind = iota
	Malleable
	BranchExceedResourceLimits
	RepeatedPubkeys
	HeightTimelockCombination
)

// AnalysisError is returned by SanityCheck.
type AnalysisError struct {
	Kind AnalysisErrorKind
}

func (e *AnalysisError) Error() string {
	switch e.Kind {
	case SiglessBranch:
		return "All spend paths must require a signature"
	case Malleable:
		return "Miniscript is malleable"
	case BranchExceedResourceLimits:
		return "At least one spend path exceeds the resource limits (stack depth/satisfaction size)"
	case RepeatedPubkeys:
		return "Miniscript contains at least one repeated public key"
	case HeightTimelockCombination:
		return "Contains a combination of heightlock and timelock"
	default:
		return "unknown analysis error"
	}
}
