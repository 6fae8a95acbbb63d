package camera

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/turbotelescope/turbo/config"
)

// Axis network camera - all-sky and enclosure webcams.
type Axis struct {
	Conf config.CameraNodeConf
}

func (c *Axis) client() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// Snapshot fetches a jpeg frame to path.
func (c *Axis) Snapshot(path string) error {
	url := c.Conf.Url + "/axis-cgi/jpg/image.cgi"
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	if c.Conf.User != "" {
		req.SetBasicAuth(c.Conf.User, c.Conf.Password)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return errors.Wrap(err, "snapshot")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("snapshot: status %d", resp.StatusCode)
	}

	fout, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fout.Close()
	_, err = io.Copy(fout, resp.Body)
	return err
}
