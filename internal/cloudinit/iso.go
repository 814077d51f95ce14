package cloudinit

import (
	"bytes"
	"fmt"

	"github.com/kdomanski/iso9660"
)

// VolumeLabel is the volume identifier the NoCloud datasource looks for.
const VolumeLabel = "CIDATA"

// GenerateSeedISO packs a rendered document and its meta-data into a NoCloud
// seed image.
//
// The image holds two files in its root directory:
//   - user-data: the cloud-config document
//   - meta-data: instance-id and local-hostname
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
func GenerateSeedISO(doc *Document, metaData []byte) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("cloud-init document cannot be nil")
	}
	if len(metaData) == 0 {
		return nil, fmt.Errorf("instance %s: meta-data cannot be empty", doc.Instance)
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		_ = writer.Cleanup()
	}()

	if err := writer.AddFile(bytes.NewReader(doc.Content), "user-data"); err != nil {
		return nil, fmt.Errorf("failed to add user-data: %w", err)
	}
	if err := writer.AddFile(bytes.NewReader(metaData), "meta-data"); err != nil {
		return nil, fmt.Errorf("failed to add meta-data: %w", err)
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, VolumeLabel); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}

	return buf.Bytes(), nil
}
