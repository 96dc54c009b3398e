package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchbase/vellum"
	"github.com/golang/snappy"
)

// MergedField is one field's already-encoded posting storage, produced
// by internal/merge rather than re-tokenized from source text.
type MergedField struct {
	Name        string
	Postings    []byte            // a codec's full backing buffer for this field
	TermOffsets map[string]uint64 // term -> relative offset into Postings
	TotalTokens uint64
	DocCount    uint64
}

// WriteMergedSegment writes a segment file directly from pre-merged
// posting storage and stored-document data, used by the generation
// merge engine to avoid re-tokenizing surviving documents. It mirrors
// Builder.Build's file layout (header, stored fields, fields index,
// footer) without going through Builder's in-memory Posting
// accumulation.
func WriteMergedSegment(dir, segmentID string, docs []map[string]any, docIDs []string, fieldLengths map[string][]uint64, fields []MergedField, generation, baseDocID uint64) (string, error) {
	segPath := filepath.Join(dir, segmentID+".seg")
	tmpPath := segPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.WriteString(SegmentMagic); err != nil {
		return "", err
	}
	if err := binary.Write(file, binary.BigEndian, SegmentVersion); err != nil {
		return "", err
	}
	if err := binary.Write(file, binary.BigEndian, uint64(len(docs))); err != nil {
		return "", err
	}

	offsetsPos, _ := file.Seek(0, 1)
	file.Write(make([]byte, 16))

	storedFieldsOffset, _ := file.Seek(0, 1)
	chunkOffsets, err := writeStoredDocs(file, docs)
	if err != nil {
		return "", err
	}

	fieldsIndexOffset, _ := file.Seek(0, 1)
	fieldsMeta := make([]FieldMeta, 0, len(fields))
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	for _, mf := range fields {
		meta, err := writeMergedFieldIndex(file, mf)
		if err != nil {
			return "", err
		}
		fieldsMeta = append(fieldsMeta, meta)
	}

	footerOffset, _ := file.Seek(0, 1)
	footer := Footer{
		StoredFieldsOffset: uint64(storedFieldsOffset),
		FieldsIndexOffset:  uint64(fieldsIndexOffset),
		ChunkOffsets:       chunkOffsets,
		FieldsMeta:         fieldsMeta,
		DocIDs:             docIDs,
		NumDocs:            uint64(len(docs)),
		FieldLengths:       fieldLengths,
		Generation:         generation,
		BaseDocID:          baseDocID,
	}
	footerData, err := json.Marshal(footer)
	if err != nil {
		return "", err
	}
	if _, err := file.Write(footerData); err != nil {
		return "", err
	}

	binary.Write(file, binary.BigEndian, uint64(footerOffset))
	binary.Write(file, binary.BigEndian, uint64(len(footerData)))

	file.Seek(offsetsPos, 0)
	binary.Write(file, binary.BigEndian, uint64(storedFieldsOffset))
	binary.Write(file, binary.BigEndian, uint64(fieldsIndexOffset))

	file.Close()

	if err := os.Rename(tmpPath, segPath); err != nil {
		return "", err
	}
	return segPath, nil
}

func writeStoredDocs(file *os.File, docs []map[string]any) ([]uint64, error) {
	var chunkOffsets []uint64
	for i := 0; i < len(docs); i += ChunkSize {
		end := i + ChunkSize
		if end > len(docs) {
			end = len(docs)
		}
		chunk := docs[i:end]

		chunkData, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		compressed := snappy.Encode(nil, chunkData)

		offset, _ := file.Seek(0, 1)
		chunkOffsets = append(chunkOffsets, uint64(offset))

		if err := binary.Write(file, binary.BigEndian, uint32(len(compressed))); err != nil {
			return nil, err
		}
		if _, err := file.Write(compressed); err != nil {
			return nil, err
		}
	}
	return chunkOffsets, nil
}

func writeMergedFieldIndex(file *os.File, mf MergedField) (FieldMeta, error) {
	meta := FieldMeta{Name: mf.Name, TotalTokens: mf.TotalTokens, DocCount: mf.DocCount}

	postingsStart, _ := file.Seek(0, 1)
	meta.PostingsOffset = uint64(postingsStart)
	if _, err := file.Write(mf.Postings); err != nil {
		return meta, err
	}
	postingsEnd, _ := file.Seek(0, 1)
	meta.PostingsSize = uint64(postingsEnd) - meta.PostingsOffset

	dictStart, _ := file.Seek(0, 1)
	meta.DictOffset = uint64(dictStart)

	termList := make([]string, 0, len(mf.TermOffsets))
	for term := range mf.TermOffsets {
		termList = append(termList, term)
	}
	sort.Strings(termList)

	var fstBuf bytes.Buffer
	fstBuilder, err := vellum.New(&fstBuf, nil)
	if err != nil {
		return meta, err
	}
	for _, term := range termList {
		if err := fstBuilder.Insert([]byte(term), mf.TermOffsets[term]); err != nil {
			return meta, err
		}
	}
	if err := fstBuilder.Close(); err != nil {
		return meta, err
	}

	binary.Write(file, binary.BigEndian, uint64(fstBuf.Len()))
	file.Write(fstBuf.Bytes())

	dictEnd, _ := file.Seek(0, 1)
	meta.DictSize = uint64(dictEnd) - meta.DictOffset

	return meta, nil
}
