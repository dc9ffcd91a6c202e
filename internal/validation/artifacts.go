package validation

// Artifact file names written by a sweep.
const (
	RawTrialsFile = "estimations_all.txt"
	MeanFile      = "estimations_mean.txt"
	RebuiltFile   = "rebuilt_list_of_parameter_sets.txt"
)

// Header lines of the artifacts. The rebuilt table header is the input
// header followed by RebuiltColumns.
const (
	RawTrialsHeader = "cmaes replay"
	MeanHeader      = "cmaes replay_mean replay_var"
)

var RebuiltColumns = []string{"replay_mean", "replay_var", "empty", "max"}
