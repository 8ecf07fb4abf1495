package offers

import (
	"fmt"
	"time"
)

const systemPrompt = "Você é um motor de busca de ofertas de varejo. Responda APENAS com um objeto JSON válido, sem texto adicional."

const findPromptTemplate = `TAREFA: Identifique os 3 supermercados MAIS POPULARES e MAIS PESQUISADOS em %s, %s.

CRITÉRIOS DE SELEÇÃO:
1. ALTA RELEVÂNCIA: devem ser as redes onde a maioria da população local faz compras (líderes de mercado).
2. PRESENÇA DIGITAL: devem ter encartes online, site ou app.
3. EXCLUA: mercadinhos de bairro desconhecidos ou sem site.

Retorne APENAS JSON com nomes e IDs:
{
  "supermarkets": [
    { "id": "1", "name": "Nome do Mercado 1" },
    { "id": "2", "name": "Nome do Mercado 2" },
    { "id": "3", "name": "Nome do Mercado 3" }
  ]
}`

const detailsPromptTemplate = `DATA DE HOJE: %s. LOCAL: %s, %s.
MERCADO ALVO: %s.

TAREFA: Encontrar preços atuais para preencher a tabela comparativa.

LISTA DE COMPRAS OBRIGATÓRIA:
1. Mercearia: Arroz 5kg OU Feijão 1kg OU Café 500g.
2. Bebidas: Cerveja (lata/garrafa) OU Refrigerante 2L.
3. Limpeza: Sabão em pó OU Detergente líquido.
4. Hortifruti: Batata (kg) OU Tomate (kg) OU Banana (kg).

REGRAS DE PREENCHIMENTO:
- Se não encontrar a oferta promocional, use o preço regular.
- Se não tiver a marca específica, use a marca destaque da categoria.
- Inclua sempre MARCA e PESO/MEDIDA no nome do produto.

Retorne APENAS JSON:
{
  "badgeType": "MEDIUM",
  "badgeText": "Preços Verificados",
  "savings": "Verificar",
  "validity": "Válido hoje",
  "link": "Link da fonte encontrada",
  "products": [
    { "category": "Mercearia", "name": "Marca + Produto + Peso", "price": "00,00", "oldPrice": "00,00" }
  ]
}`

func findPrompt(q Query) string {
	return fmt.Sprintf(findPromptTemplate, q.City, q.State)
}

func detailsPrompt(q Query, now time.Time) string {
	return fmt.Sprintf(detailsPromptTemplate, now.Format("02/01"), q.City, q.State, q.MarketName)
}
