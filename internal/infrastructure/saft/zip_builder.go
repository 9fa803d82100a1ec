package saft

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
	pkgfiscal "github.com/bboa3/mz-compliance/pkg/fiscal"
)

// CompressXMLToZip empacota o XML do export num ZIP em memória com uma única
// entrada, pronto para o payload de envio à AT.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: criar entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escrever XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: fechar ficheiro: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilenames gera os nomes do XML interno e do ZIP para um export.
// Formato determinístico (sem timestamp, para reenvios idempotentes):
//
//	SAFT_{NUIT}_{período}_G{geração}
//
// Exemplo: SAFT_400123456_2025-07_G1.xml
func ExportFilenames(company *entity.Company, doc *entity.ExportDocument) (xmlName, zipName string) {
	base := fmt.Sprintf("SAFT_%s_%s_G%d",
		pkgfiscal.NormalizeNUIT(company.NUIT), doc.Period.String(), doc.Generation)
	return base + ".xml", base + ".zip"
}
