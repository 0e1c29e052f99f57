// ABOUTME: Disk-backed blob store built on diskv.
// ABOUTME: Payloads live under a two-level fan-out of their digest; the media type sits in a sidecar key.
package blob

import (
	"context"
	"fmt"

	"github.com/peterbourgon/diskv/v3"

	"github.com/2389-research/snapboard/board/core"
)

const mimeSuffix = ".mime"

// Disk stores payloads as files beneath a base directory.
type Disk struct {
	kv *diskv.Diskv
}

// OpenDisk opens (or creates) a disk store rooted at dir. cacheBytes bounds
// the in-memory read cache; zero disables it.
func OpenDisk(dir string, cacheBytes uint64) *Disk {
	kv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    fanOut,
		CacheSizeMax: cacheBytes,
	})
	return &Disk{kv: kv}
}

// fanOut spreads keys over subdirectories named after the first digest bytes.
func fanOut(key string) []string {
	if len(key) < 4 {
		return []string{}
	}
	return []string{key[0:2], key[2:4]}
}

func (d *Disk) Put(_ context.Context, img Image) (core.ContentRef, error) {
	if img.Empty() {
		return "", ErrEmpty
	}
	ref := RefFor(img.Data)
	key, _ := digest(ref)
	if d.kv.Has(key) {
		return ref, nil
	}
	img = NewImage(img.Data, img.MIMEType)
	if err := d.kv.Write(key+mimeSuffix, []byte(img.MIMEType)); err != nil {
		return "", fmt.Errorf("write blob type: %w", err)
	}
	if err := d.kv.Write(key, img.Data); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

func (d *Disk) Get(_ context.Context, ref core.ContentRef) (Image, error) {
	key, err := digest(ref)
	if err != nil {
		return Image{}, err
	}
	if !d.kv.Has(key) {
		return Image{}, ErrNotFound
	}
	data, err := d.kv.Read(key)
	if err != nil {
		return Image{}, fmt.Errorf("read blob: %w", err)
	}
	mime, err := d.kv.Read(key + mimeSuffix)
	if err != nil {
		mime = nil
	}
	return NewImage(data, string(mime)), nil
}

func (d *Disk) Delete(_ context.Context, ref core.ContentRef) error {
	key, err := digest(ref)
	if err != nil {
		return err
	}
	if d.kv.Has(key) {
		if err := d.kv.Erase(key); err != nil {
			return fmt.Errorf("erase blob: %w", err)
		}
	}
	if d.kv.Has(key + mimeSuffix) {
		_ = d.kv.Erase(key + mimeSuffix)
	}
	return nil
}
