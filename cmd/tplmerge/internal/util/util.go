package util

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/portainer-templates/tplmerge/pkg/source"
)

// AddFetchFlags registers the flags that tune catalog downloads.
func AddFetchFlags(fs *pflag.FlagSet) {
	fs.Duration("timeout", source.DefaultTimeout, "timeout for each source download")
	fs.Int("workers", source.DefaultWorkers, "maximum number of concurrent downloads")
}

// GetFetcherOptions validates and returns fetcher options set by the fetch flags.
func GetFetcherOptions(cmd *cobra.Command, log *logrus.Entry) ([]source.FetcherOption, error) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	switch {
	case timeout <= 0:
		return nil, fmt.Errorf("invalid --timeout %s: must be positive", timeout)
	case workers < 1:
		return nil, fmt.Errorf("invalid --workers %d: must be at least 1", workers)
	}
	return []source.FetcherOption{
		source.WithTimeout(timeout),
		source.WithWorkers(workers),
		source.WithLog(log),
	}, nil
}
