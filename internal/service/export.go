package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"estate-leads/internal/domain"

	"github.com/xuri/excelize/v2"
)

// LeadExportHeader 导出列（顺序即导出顺序）
var LeadExportHeader = []string{
	"ID",
	"Name",
	"Email",
	"Phone",
	"Budget",
	"Temperature",
	"Is Duplicate",
	"Discussion Summary",
	"Properties Interested",
	"Created Date",
	"Last Updated",
}

// ExportLeadsCSV 导出线索为CSV
// 输出 N+1 行（表头 + 每线索一行），所有字段双引号包裹，
// 字段内的双引号转义为两个双引号（逗号/换行原样保留在引号内）
func ExportLeadsCSV(leads []*domain.Lead) []byte {
	var b bytes.Buffer
	writeCSVRow(&b, LeadExportHeader)
	for _, lead := range leads {
		b.WriteByte('\n')
		writeCSVRow(&b, leadExportRow(lead))
	}
	return b.Bytes()
}

func writeCSVRow(b *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

func leadExportRow(lead *domain.Lead) []string {
	isDup := "No"
	if lead.IsDuplicate {
		isDup = "Yes"
	}
	propNames := make([]string, 0, len(lead.SelectedProperties))
	for _, p := range lead.SelectedProperties {
		propNames = append(propNames, p.Name)
	}
	return []string{
		lead.LeadID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Budget,
		lead.Temperature,
		isDup,
		lead.DiscussionSummary,
		strings.Join(propNames, "; "),
		lead.CreatedAt.UTC().Format(time.RFC3339),
		lead.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ExportLeadsExcel 导出线索为Excel文件
// 与CSV同列集；仪表盘下载用
func ExportLeadsExcel(leads []*domain.Lead) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Leads"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range LeadExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIdx, lead := range leads {
		for col, value := range leadExportRow(lead) {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize excel: %w", err)
	}
	_ = f.Close()
	return buf.Bytes(), nil
}
