package saft

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/bboa3/mz-compliance/internal/domain"
)

// SchemaValidatorService valida a estrutura do ficheiro SAF-T antes do envio.
//
// O XSD legal é um contrato externo opaco; localmente validamos o contrato
// estrutural declarado para cada versão de esquema (elementos obrigatórios,
// ordem fixa, montantes parseáveis). Um ficheiro que falhe aqui é marcado
// Rejected e nunca chega a ser enviado à AT.
type SchemaValidatorService struct{}

// NewSchemaValidatorService cria o serviço.
func NewSchemaValidatorService() *SchemaValidatorService {
	return &SchemaValidatorService{}
}

// headerOrder é a ordem fixa dos filhos de Header na versão 1.0.
var headerOrder = []string{"CompanyInfo", "PeriodInfo", "GenerationInfo", "VarianceCheck"}

// rootOrder é a ordem fixa das secções de topo na versão 1.0.
var rootOrder = []string{"Header", "MasterFiles", "SourceDocuments"}

// invoiceRequired são os elementos obrigatórios de cada Invoice.
var invoiceRequired = []string{"RecordID", "InvoiceNumber", "InvoiceType", "InvoiceDate", "NetAmount", "TaxAmount", "GrossAmount", "Currency"}

// payrollRequired são os elementos obrigatórios de cada PayrollEntry.
var payrollRequired = []string{"RecordID", "EmployeeID", "GrossAmount", "EmployerContribution", "EmployeeContribution", "BenefitsInKind"}

// Validate verifica o XML contra o contrato estrutural da sua versão.
// Devolve domain.ErrSchemaInvalid (com detalhe) na primeira não-conformidade.
func (s *SchemaValidatorService) Validate(xmlBytes []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return fmt.Errorf("%w: XML malformado: %v", domain.ErrSchemaInvalid, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "SAFT" {
		return fmt.Errorf("%w: elemento raiz deve ser SAFT", domain.ErrSchemaInvalid)
	}
	if ns := root.SelectAttrValue("xmlns", ""); ns != NsSAFT {
		return fmt.Errorf("%w: namespace inesperado %q", domain.ErrSchemaInvalid, ns)
	}
	version := root.SelectAttrValue("version", "")
	if version == "" {
		return fmt.Errorf("%w: atributo version em falta", domain.ErrSchemaInvalid)
	}
	// Única versão com contrato estrutural conhecido nesta instalação.
	if version != "1.0" {
		return fmt.Errorf("%w: versão de esquema não suportada %q", domain.ErrSchemaInvalid, version)
	}

	if err := requireOrder(root, rootOrder, "SAFT"); err != nil {
		return err
	}

	header := root.SelectElement("Header")
	if err := requireOrder(header, headerOrder, "Header"); err != nil {
		return err
	}
	if err := s.validateHeader(header); err != nil {
		return err
	}

	src := root.SelectElement("SourceDocuments")
	for _, inv := range src.FindElements("SalesInvoices/Invoice") {
		if err := requireChildren(inv, invoiceRequired, "Invoice"); err != nil {
			return err
		}
		for _, amount := range []string{"NetAmount", "TaxAmount", "GrossAmount"} {
			if err := requireAmount(inv, amount); err != nil {
				return err
			}
		}
	}
	for _, pe := range src.FindElements("PayrollEntries/PayrollEntry") {
		if err := requireChildren(pe, payrollRequired, "PayrollEntry"); err != nil {
			return err
		}
		for _, amount := range []string{"GrossAmount", "EmployerContribution", "EmployeeContribution", "BenefitsInKind"} {
			if err := requireAmount(pe, amount); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SchemaValidatorService) validateHeader(header *etree.Element) error {
	nuit := textOf(header, "CompanyInfo/NUIT")
	if len(nuit) != 9 {
		return fmt.Errorf("%w: NUIT da empresa deve ter 9 dígitos, tem %d", domain.ErrSchemaInvalid, len(nuit))
	}
	for _, path := range []string{"PeriodInfo/StartDate", "PeriodInfo/EndDate", "PeriodInfo/Period", "GenerationInfo/GenerationDate"} {
		if textOf(header, path) == "" {
			return fmt.Errorf("%w: %s em falta", domain.ErrSchemaInvalid, path)
		}
	}
	// Override sem justificação não é auditável.
	vc := header.SelectElement("VarianceCheck")
	if textOf(vc, "Override") == "true" && strings.TrimSpace(textOf(vc, "OverrideReason")) == "" {
		return fmt.Errorf("%w: Override sem OverrideReason", domain.ErrSchemaInvalid)
	}
	return nil
}

// requireOrder exige que os filhos nomeados existam e apareçam na ordem declarada.
func requireOrder(parent *etree.Element, order []string, context string) error {
	if parent == nil {
		return fmt.Errorf("%w: secção %s em falta", domain.ErrSchemaInvalid, context)
	}
	idx := 0
	for _, child := range parent.ChildElements() {
		if idx < len(order) && child.Tag == order[idx] {
			idx++
		}
	}
	if idx != len(order) {
		return fmt.Errorf("%w: %s deve conter %v por esta ordem", domain.ErrSchemaInvalid, context, order)
	}
	return nil
}

func requireChildren(parent *etree.Element, required []string, context string) error {
	for _, tag := range required {
		if parent.SelectElement(tag) == nil {
			return fmt.Errorf("%w: %s sem elemento %s", domain.ErrSchemaInvalid, context, tag)
		}
	}
	return nil
}

func requireAmount(parent *etree.Element, tag string) error {
	raw := textOf(parent, tag)
	if _, err := decimal.NewFromString(raw); err != nil {
		return fmt.Errorf("%w: %s com montante inválido %q", domain.ErrSchemaInvalid, tag, raw)
	}
	return nil
}

func textOf(parent *etree.Element, path string) string {
	if parent == nil {
		return ""
	}
	el := parent.FindElement(path)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}
