package pe

import (
	"fmt"
	"io"

	"pecodec/coff"
	"pecodec/common"
)

// AttributeCertificate is one WIN_CERTIFICATE entry of the certificate
// table (spec.md §4.8): the data directory's RVA field is actually a
// plain file offset here, not an RVA, and each entry is padded to an
// 8-byte boundary.
type AttributeCertificate struct {
	Revision        uint16
	CertificateType uint16
	Data            []byte
}

// parseCertificates reads the certificate table at certDir.RVA (a file
// offset) for certDir.Size bytes. An entry whose declared length is
// under the 8-byte header is malformed: its header fields are still
// kept and returned with an empty payload rather than dropped, so a
// caller sees the entry existed, and the reader skips straight to the
// end of the directory since the length can no longer be trusted to
// locate the next entry (spec.md §4.8 edge case).
func (img *Image) parseCertificates(s common.Stream, certDir coff.DataDirectory) ([]AttributeCertificate, error) {
	if _, err := s.Seek(int64(certDir.RVA), io.SeekStart); err != nil {
		return nil, err
	}

	var certs []AttributeCertificate
	remaining := int64(certDir.Size)

	for remaining >= 8 {
		length, err := common.ReadUint32LE(s)
		if err != nil {
			break
		}
		revision, err := common.ReadUint16LE(s)
		if err != nil {
			break
		}
		certType, err := common.ReadUint16LE(s)
		if err != nil {
			break
		}

		if length < 8 || int64(length) > remaining {
			img.logMalformed("parseCertificates", fmt.Errorf("declared length %d outside remaining %d bytes", length, remaining))
			certs = append(certs, AttributeCertificate{Revision: revision, CertificateType: certType})
			if _, err := s.Seek(remaining-8, io.SeekCurrent); err != nil {
				return nil, err
			}
			break
		}

		payload := make([]byte, length-8)
		if len(payload) > 0 {
			if _, err := io.ReadFull(s, payload); err != nil {
				return nil, common.NewTruncatedStream("parseCertificates.payload", err)
			}
		}

		certs = append(certs, AttributeCertificate{
			Revision:        revision,
			CertificateType: certType,
			Data:            payload,
		})

		padded := int64(common.AlignUp(length, 8))
		if padded > int64(length) {
			if _, err := s.Seek(padded-int64(length), io.SeekCurrent); err != nil {
				return nil, err
			}
		}
		remaining -= padded
	}

	return certs, nil
}

// write emits this certificate's 8-byte header followed by its payload,
// including the length field itself in the declared length (spec.md
// §4.8). Padding to the next 8-byte boundary is the caller's
// responsibility, matching how the section table pads bodies.
func (c *AttributeCertificate) write(w io.Writer) error {
	length := uint32(8 + len(c.Data))
	if err := common.WriteUint32LE(w, length); err != nil {
		return err
	}
	if err := common.WriteUint16LE(w, c.Revision); err != nil {
		return err
	}
	if err := common.WriteUint16LE(w, c.CertificateType); err != nil {
		return err
	}
	if len(c.Data) > 0 {
		if _, err := w.Write(c.Data); err != nil {
			return err
		}
	}
	return nil
}
