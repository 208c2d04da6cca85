package campaign

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

// ParseContactCSV reads an upload CSV into contact rows. The first line is
// the header; column order is free but a phone column is mandatory. Malformed
// lines are reported by line number and skipped.
func ParseContactCSV(data []byte) ([]ContactRow, []string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read CSV header: %v", apperrors.ErrValidation, err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	phoneIdx, ok := colMap["phone"]
	if !ok {
		phoneIdx, ok = colMap["telefone"]
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: CSV must have a 'phone' column", apperrors.ErrValidation)
	}

	nameIdx, hasName := colMap["name"]
	if !hasName {
		nameIdx, hasName = colMap["nome"]
	}
	cpfIdx, hasCPF := colMap["cpf"]
	contractIdx, hasContract := colMap["contract"]
	if !hasContract {
		contractIdx, hasContract = colMap["contrato"]
	}

	var rows []ContactRow
	var lineErrors []string
	lineNum := 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			lineErrors = append(lineErrors, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}

		if phoneIdx >= len(record) || strings.TrimSpace(record[phoneIdx]) == "" {
			lineErrors = append(lineErrors, fmt.Sprintf("line %d: missing phone", lineNum))
			continue
		}

		row := ContactRow{Phone: strings.TrimSpace(record[phoneIdx])}
		if hasName && nameIdx < len(record) {
			row.Name = strings.TrimSpace(record[nameIdx])
		}
		if hasCPF && cpfIdx < len(record) {
			row.CPF = strings.TrimSpace(record[cpfIdx])
		}
		if hasContract && contractIdx < len(record) {
			row.Contract = strings.TrimSpace(record[contractIdx])
		}
		rows = append(rows, row)
	}

	return rows, lineErrors, nil
}
