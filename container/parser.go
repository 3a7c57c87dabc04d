// Package container walks packed image containers and yields their classified records.
package container

import (
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/palette"
)

// Stats counts the outcome of every record seen by a [Parser].
type Stats struct {
	Parsed      int
	Skipped     int
	Unsupported int
}

// Parser decodes containers. It is not safe for concurrent use; the stats of every parsed
// asset are accumulated.
type Parser struct {
	cfg   *config
	stats Stats
}

func NewParser(options ...Option) *Parser {
	return &Parser{cfg: newConfig(options...)}
}

func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse yields the palette and raw records of asset in container order.
//
// Records that can't be decoded on their own (oversize, failed inflate, unknown signature) are
// logged, counted and skipped; the cursor still moves past their declared content so the
// following records stay aligned. Any disagreement of the container with itself is yielded as
// an error wrapping [tvl.ErrFormatIntegrity] and ends the sequence. Raw payloads share memory
// with asset.Data.
func (p *Parser) Parse(asset Asset) iter.Seq2[*tvl.DecodedImage, error] {
	return func(yield func(*tvl.DecodedImage, error) bool) {
		if err := asset.Verify(); err != nil {
			yield(nil, err)
			return
		}

		var (
			buf    = asset.Data
			source = asset.Source()
			log    = p.cfg.logger.WithField("file", asset.FileName)
		)

		header, cursor, err := layout.ReadHeader(buf, 0)
		if err != nil {
			yield(nil, fmt.Errorf("%w: %s: header: %w", tvl.ErrFormatIntegrity, asset.FileName, err))
			return
		}
		log.WithField("magic", fmt.Sprintf("%q", header.Magic)).Debug("Parsing container")

		for cursor < len(buf) {
			start := cursor

			record, next, err := layout.ReadRecord(buf, cursor)
			if err != nil {
				yield(nil, fmt.Errorf(
					"%w: %s: record at %d: %w", tvl.ErrFormatIntegrity, asset.FileName, start, err,
				))
				return
			}

			if int64(record.Offset) != int64(start) {
				yield(nil, fmt.Errorf(
					"%w: %s: record %q reports offset %d, found at %d",
					tvl.ErrFormatIntegrity, asset.FileName, record.FileName, record.Offset, start,
				))
				return
			}

			if record.IsSentinel() {
				log.WithField("offset", start).Info("Sentinel record ends the container early")
				return
			}

			end := next + int(record.ContentSize)
			if end > len(buf) {
				yield(nil, fmt.Errorf(
					"%w: %s: record %q: %w", tvl.ErrFormatIntegrity, asset.FileName, record.FileName,
					&layout.BoundsError{Offset: next, Need: int(record.ContentSize), Len: len(buf)},
				))
				return
			}
			cursor = end

			img, err := p.decode(source, record, buf[next:end])
			if err != nil {
				if !tvl.Recoverable(err) {
					yield(nil, fmt.Errorf("%s: record %q: %w", asset.FileName, record.FileName, err))
					return
				}
				p.skip(log.WithField("record", record.FileName).WithField("offset", start), err)
				continue
			}

			p.stats.Parsed++
			p.cfg.metrics.RecordsParsed.Inc()
			if p.stats.Parsed%p.cfg.progress == 0 {
				log.WithField("parsed", p.stats.Parsed).Info("Parsing progress")
			}

			if !yield(img, nil) {
				return
			}
		}
	}
}

func (p *Parser) decode(
	source tvl.Source,
	record layout.Record,
	payload []byte,
) (*tvl.DecodedImage, error) {
	img := tvl.DecodedImage{Source: source, Record: record}

	if !record.Options.Has(layout.IsCustomFormat) {
		if _, err := palette.Classify(record.Options, payload); err != nil {
			return nil, err
		}
		img.Payload = tvl.Raw{Bytes: payload}
		return &img, nil
	}

	if len(payload) > p.cfg.paletteLimit {
		return nil, fmt.Errorf(
			"%w: palette payload of %d bytes, limit is %d",
			tvl.ErrSizeLimit, len(payload), p.cfg.paletteLimit,
		)
	}
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: empty palette payload", tvl.ErrMalformedPayload)
	}

	size := payload[0]
	colors, indices, err := palette.DecodePalette(size, record.Pixels(), payload[1:])
	if err != nil {
		return nil, fmt.Errorf("%dx%d image: %w", record.Width, record.Height, err)
	}

	img.Payload = tvl.Palette{Size: size, Colors: colors, Indices: indices}
	return &img, nil
}

func (p *Parser) skip(log *logrus.Entry, err error) {
	reason := skipReason(err)
	p.cfg.metrics.RecordsSkipped.WithLabelValues(reason).Inc()

	if errors.Is(err, tvl.ErrUnsupportedFormat) {
		p.stats.Unsupported++
		log.WithError(err).Info("Skipping unsupported record")
		return
	}

	p.stats.Skipped++
	log.WithError(err).Warn("Skipping record")
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, tvl.ErrSizeLimit):
		return "size_limit"
	case errors.Is(err, tvl.ErrDecompression):
		return "decompression"
	case errors.Is(err, tvl.ErrMalformedPayload):
		return "malformed"
	default:
		return "unsupported"
	}
}
